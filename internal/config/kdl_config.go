package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/contentbase/internal/types"
)

// Load reads ".contentbase.kdl" from projectRoot if present and layers it
// over Default(artifactsRoot). A missing file is not an error: the
// defaults are returned unchanged.
func Load(projectRoot, artifactsRoot string) (*Config, error) {
	cfg := Default(artifactsRoot)

	kdlPath := filepath.Join(projectRoot, ".contentbase.kdl")
	content, err := os.ReadFile(kdlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", kdlPath, err)
	}

	if err := applyKDL(cfg, string(content)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("config: parse .contentbase.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "storage":
			applyStorage(cfg, n)
		case "pool":
			applyPool(cfg, n)
		case "models":
			applyModels(cfg, n)
		case "chunking":
			applyChunking(cfg, n)
		case "query":
			applyQuery(cfg, n)
		case "artifacts_root":
			if s, ok := firstStringArg(n); ok {
				cfg.ArtifactsRoot = s
			}
		}
	}
	return nil
}

func applyStorage(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "backend":
			if s, ok := firstStringArg(cn); ok {
				cfg.Storage.Backend = s
			}
		case "fs":
			for _, fn := range cn.Children {
				if nodeName(fn) == "root" {
					if s, ok := firstStringArg(fn); ok {
						cfg.Storage.FS.Root = s
					}
				}
			}
		case "s3":
			for _, sn := range cn.Children {
				switch nodeName(sn) {
				case "bucket":
					if s, ok := firstStringArg(sn); ok {
						cfg.Storage.S3.Bucket = s
					}
				case "prefix":
					if s, ok := firstStringArg(sn); ok {
						cfg.Storage.S3.Prefix = s
					}
				case "region":
					if s, ok := firstStringArg(sn); ok {
						cfg.Storage.S3.Region = s
					}
				}
			}
		}
	}
}

func applyPool(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_in_flight":
			if v, ok := firstIntArg(cn); ok {
				cfg.Pool.MaxInFlight = v
			}
		case "notification_buffer_size":
			if v, ok := firstIntArg(cn); ok {
				cfg.Pool.NotificationBufferSize = v
			}
		}
	}
}

func applyModels(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "offload_after_ms":
			if v, ok := firstIntArg(cn); ok {
				cfg.Models.OffloadAfter = time.Duration(v) * time.Millisecond
			}
		case "queue_capacity":
			if v, ok := firstIntArg(cn); ok {
				cfg.Models.QueueCapacity = v
			}
		case "batch_size":
			// batch_size { image_embedding 16; audio_transcript 4 }
			for _, bn := range cn.Children {
				if v, ok := firstIntArg(bn); ok {
					cfg.Models.BatchSize[nodeName(bn)] = v
				}
			}
		}
	}
}

func applyChunking(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		name := nodeName(cn)
		kind := types.ContentKind(name)
		if !kind.Valid() {
			continue
		}
		if v, ok := firstIntArg(cn); ok {
			cfg.Chunking.ChunkSize[kind] = v
		}
	}
}

func applyQuery(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "rrf_k":
			if v, ok := firstIntArg(cn); ok {
				cfg.Query.RRFConstant = v
			}
		case "k":
			if v, ok := firstIntArg(cn); ok {
				cfg.Query.DefaultK = v
			}
		case "offset":
			if v, ok := firstIntArg(cn); ok {
				cfg.Query.DefaultOffset = v
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}
