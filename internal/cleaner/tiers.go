package cleaner

import (
	"time"

	"github.com/HaPhanBaoMinh/podcleaner/internal/domain"
)

// Tier maps a cluster size to a recovery budget.
type Tier struct {
	Name          string        `mapstructure:"name"`
	MaxNamespaces int           `mapstructure:"max_namespaces"` // <= 0 means unbounded
	MaxWait       time.Duration `mapstructure:"max_wait"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

func (t Tier) Budget() domain.PollBudget {
	return domain.PollBudget{MaxWait: t.MaxWait, CheckInterval: t.CheckInterval}
}

// Tiers are ordered smallest first. Bigger clusters poll less often and give
// up sooner so a cycle stays cheap.
type Tiers []Tier

func DefaultTiers() Tiers {
	return Tiers{
		{Name: "small", MaxNamespaces: 20, MaxWait: 5 * time.Minute, CheckInterval: 15 * time.Second},
		{Name: "medium", MaxNamespaces: 100, MaxWait: 4 * time.Minute, CheckInterval: 30 * time.Second},
		{Name: "large", MaxNamespaces: 0, MaxWait: 3 * time.Minute, CheckInterval: time.Minute},
	}
}

// Select returns the first tier that fits n namespaces, else the last one.
func (ts Tiers) Select(n int) Tier {
	if len(ts) == 0 {
		return DefaultTiers().Select(n)
	}
	for _, t := range ts {
		if t.MaxNamespaces <= 0 || n <= t.MaxNamespaces {
			return t
		}
	}
	return ts[len(ts)-1]
}
