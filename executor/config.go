package executor

import (
	"github.com/Jeffail/tunny"
	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	conc "github.com/sourcegraph/conc/pool"
)

// Config configures a Bridge the way core/scheduler.Config configures the
// teacher's job scheduler: a small YAML-tagged struct, parsed with
// gopkg.in/yaml.v3 by whatever outer configuration layer embeds this
// runtime.
type Config struct {
	// MaxConcurrent bounds concurrent in-flight submissions. Zero or
	// negative installs no Limiter; the goroutine pool is then unbounded,
	// and the ants, workerpool, conc and tunny pools default to 32 workers.
	MaxConcurrent int `yaml:"maxConcurrent"`
	// Pool selects which Pool adapter NewBridgeFromConfig constructs:
	// one of "goroutine" (default), "ants", "workerpool", "conc", "tunny".
	Pool string `yaml:"pool"`
}

// NewBridgeFromConfig builds a Bridge from cfg, defaulting to the
// unbounded goroutine pool for an unrecognized or empty Pool name.
func NewBridgeFromConfig(cfg Config) *Bridge {
	var pool Pool
	switch cfg.Pool {
	case "ants":
		p, err := ants.NewPool(poolSizeOrDefault(cfg.MaxConcurrent))
		if err != nil {
			pool = PoolOfGoroutines()
		} else {
			pool = PoolOfAnts(p)
		}
	case "workerpool":
		pool = PoolOfWorkerpool(workerpool.New(poolSizeOrDefault(cfg.MaxConcurrent)))
	case "conc":
		pool = PoolOfConc(conc.New().WithMaxGoroutines(poolSizeOrDefault(cfg.MaxConcurrent)))
	case "tunny":
		pool = PoolOfTunny(tunny.NewFunc(poolSizeOrDefault(cfg.MaxConcurrent), func(payload interface{}) interface{} {
			payload.(func())()
			return nil
		}))
	default:
		pool = PoolOfGoroutines()
	}

	opts := []BridgeOption{}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithLimiter(NewLimiter(cfg.MaxConcurrent)))
	}
	return NewBridge(pool, opts...)
}

func poolSizeOrDefault(n int) int {
	if n <= 0 {
		return 32
	}
	return n
}
