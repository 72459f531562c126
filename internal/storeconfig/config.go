// Package storeconfig loads the on-disk, chain-id-keyed store layout
// configuration (spec §6 "Store config (on-disk)") with an `extends`
// relation for sharing common layout between variants (e.g. T&T CA/US).
package storeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/tuumbleweed/xerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tolerances holds the store-tunable validation tolerances; falls back to
// spec §3's constants when zero.
type Tolerances struct {
	MathTolerance float64 `json:"math_tolerance,omitempty"`
	SumTolerance  float64 `json:"sum_tolerance,omitempty"`
}

// Config is a single chain-id's resolved (post-extends) layout config.
type Config struct {
	ChainID  string `json:"chain_id"`
	Extends  string `json:"extends,omitempty"`

	Identification struct {
		PrimaryName string   `json:"primary_name"`
		Aliases     []string `json:"aliases,omitempty"`
	} `json:"identification"`

	Pipeline struct {
		SkewCorrection  bool    `json:"skew_correction"`
		RowEpsilon      float64 `json:"row_epsilon"`
		AmountSplitRows bool    `json:"amount_split_rows"`
		StageTimeoutMs  int     `json:"stage_timeout_ms"`
	} `json:"pipeline"`

	Items struct {
		SectionHeaders []string `json:"section_headers,omitempty"`
		Layout         struct {
			AmountSuffixes   []string `json:"amount_suffixes,omitempty"`
			SkuNameFallback  float64  `json:"sku_name_fallback"`
			NameAmountFallback float64 `json:"name_amount_fallback"`
		} `json:"layout"`
	} `json:"items"`

	WashData struct {
		FeeRowPatterns []string `json:"fee_row_patterns,omitempty"`
	} `json:"wash_data"`

	Validation struct {
		Tolerances Tolerances `json:"tolerances"`
	} `json:"validation"`

	Markers struct {
		Member   string `json:"member,omitempty"`
		Subtotal string `json:"subtotal,omitempty"`
		Tax      string `json:"tax,omitempty"`
		Total    string `json:"total,omitempty"`
		ExcludeFromTotal string `json:"exclude_from_total,omitempty"`
	} `json:"markers"`
}

// Registry is a read-mostly, reload-capable store of Config documents
// keyed by chain id, resolving `extends` at load time. Callers obtain the
// shared registry from a constructed Services aggregate (spec §9) rather
// than a package-level singleton.
type Registry struct {
	mu      sync.RWMutex
	byChain map[string]Config
}

// NewRegistry returns an empty registry; call Reload to populate it.
func NewRegistry() *Registry {
	return &Registry{byChain: make(map[string]Config)}
}

// Get returns the resolved config for chainID.
func (r *Registry) Get(chainID string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byChain[chainID]
	return c, ok
}

// MatchMerchant resolves merchantName to a chain id by case-insensitive
// substring match against each config's identification.primary_name and
// aliases (spec §4.10 step 2, "resolve store config from merchant name or
// block hints"). The longest matching name wins, so e.g. "costco wholesale"
// prefers a config whose primary_name is "costco wholesale" over a looser
// "costco" alias on another chain.
func (r *Registry) MatchMerchant(merchantName string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(merchantName))
	if needle == "" {
		return Config{}, false
	}

	var best Config
	var bestLen int
	found := false
	for _, cfg := range r.byChain {
		candidates := append([]string{cfg.Identification.PrimaryName}, cfg.Identification.Aliases...)
		for _, candidate := range candidates {
			c := strings.ToLower(strings.TrimSpace(candidate))
			if c == "" {
				continue
			}
			if strings.Contains(needle, c) && len(c) > bestLen {
				best, bestLen, found = cfg, len(c), true
			}
		}
	}
	return best, found
}

// Reload replaces the registry contents from raw JSON documents, resolving
// `extends` relations. It is safe to call while Get is in use elsewhere;
// readers see either the old or the new generation, never a partial one.
func (r *Registry) Reload(rawDocs map[string][]byte) *xerr.Error {
	parsed := make(map[string]Config, len(rawDocs))
	for chainID, raw := range rawDocs {
		var cfg Config
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return xerr.NewError(err, "parse store config", chainID)
		}
		if cfg.ChainID == "" {
			cfg.ChainID = chainID
		}
		parsed[chainID] = cfg
	}

	resolved := make(map[string]Config, len(parsed))
	var resolve func(id string, seen map[string]bool) (Config, *xerr.Error)
	resolve = func(id string, seen map[string]bool) (Config, *xerr.Error) {
		if cfg, ok := resolved[id]; ok {
			return cfg, nil
		}
		cfg, ok := parsed[id]
		if !ok {
			return Config{}, xerr.NewError(nil, "unknown extends target", id)
		}
		if cfg.Extends == "" {
			resolved[id] = cfg
			return cfg, nil
		}
		if seen[id] {
			return Config{}, xerr.NewError(nil, "circular extends chain", id)
		}
		seen[id] = true
		base, e := resolve(cfg.Extends, seen)
		if e != nil {
			return Config{}, e
		}
		merged := mergeConfig(base, cfg)
		resolved[id] = merged
		return merged, nil
	}

	for id := range parsed {
		if _, e := resolve(id, map[string]bool{}); e != nil {
			return e
		}
	}

	r.mu.Lock()
	r.byChain = resolved
	r.mu.Unlock()
	return nil
}

// ReloadDir reads every *.json file directly under dir and reloads the
// registry from them, keying each document by its filename stem (e.g.
// costco_ca_digital.json -> "costco_ca_digital"). A missing directory is
// not an error: the registry is simply left empty, matching
// internal/config.InitializeConfig's "missing file keeps defaults, logged
// at the call site" posture rather than refusing to start.
func (r *Registry) ReloadDir(dir string) *xerr.Error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerr.NewError(err, "read store config directory", dir)
	}

	rawDocs := make(map[string][]byte)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return xerr.NewError(readErr, "read store config file", path)
		}
		chainID := strings.TrimSuffix(entry.Name(), ".json")
		rawDocs[chainID] = data
	}

	return r.Reload(rawDocs)
}

// mergeConfig overlays child's explicitly-set fields onto base, the
// `extends` composition rule from spec §6.
func mergeConfig(base, child Config) Config {
	merged := base
	merged.ChainID = child.ChainID
	merged.Extends = ""

	if child.Identification.PrimaryName != "" {
		merged.Identification = child.Identification
	}
	if child.Pipeline.RowEpsilon != 0 {
		merged.Pipeline = child.Pipeline
	} else {
		merged.Pipeline.SkewCorrection = child.Pipeline.SkewCorrection
	}
	if len(child.Items.SectionHeaders) > 0 {
		merged.Items.SectionHeaders = child.Items.SectionHeaders
	}
	if len(child.Items.Layout.AmountSuffixes) > 0 {
		merged.Items.Layout = child.Items.Layout
	}
	if len(child.WashData.FeeRowPatterns) > 0 {
		merged.WashData = child.WashData
	}
	if child.Validation.Tolerances.MathTolerance != 0 {
		merged.Validation.Tolerances = child.Validation.Tolerances
	}
	if child.Markers.Member != "" || child.Markers.Subtotal != "" || child.Markers.Total != "" {
		merged.Markers = child.Markers
	}
	return merged
}
