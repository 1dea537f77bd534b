// Package carrier loads carrier policy from a YAML file and hands it
// out as immutable snapshots. The tracker reads one snapshot per
// decision; a reload swaps the pointer atomically so in-flight
// decisions keep a consistent view.
package carrier

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/imstrack/imstrack/internal/cause"
	"github.com/imstrack/imstrack/internal/ims"
)

// fileConfig is the on-disk YAML shape.
type fileConfig struct {
	AllowEmergencyVideoCalls         bool     `yaml:"allow_emergency_video_calls"`
	TreatDowngradedVideoAsVideo      bool     `yaml:"treat_downgraded_video_as_video"`
	DropVideoWhenAnsweringAudio      bool     `yaml:"drop_video_when_answering_audio"`
	AllowAddCallDuringVideoCall      bool     `yaml:"allow_add_call_during_video_call"`
	NotifyVtHandoverToWifiFail       bool     `yaml:"notify_vt_handover_to_wifi_fail"`
	SupportDowngradeVtToAudio        bool     `yaml:"support_downgrade_vt_to_audio"`
	NotifyHandoverVideoFromWifiToLTE bool     `yaml:"notify_handover_video_from_wifi_to_lte"`
	NotifyHandoverVideoFromLTEToWifi bool     `yaml:"notify_handover_video_from_lte_to_wifi"`
	IgnoreDataEnabledForVideoCalls   bool     `yaml:"ignore_data_enabled_for_video_calls"`
	ViLTEDataMetered                 bool     `yaml:"vilte_data_metered"`
	SupportPauseVideo                bool     `yaml:"support_pause_video"`
	ReasonRemap                      []string `yaml:"reason_remap"`
}

// Snapshot is one immutable view of carrier policy.
type Snapshot struct {
	AllowEmergencyVideoCalls         bool
	TreatDowngradedVideoAsVideo      bool
	DropVideoWhenAnsweringAudio      bool
	AllowAddCallDuringVideoCall      bool
	NotifyVtHandoverToWifiFail       bool
	SupportDowngradeVtToAudio        bool
	NotifyHandoverVideoFromWifiToLTE bool
	NotifyHandoverVideoFromLTEToWifi bool
	IgnoreDataEnabledForVideoCalls   bool
	ViLTEDataMetered                 bool
	SupportPauseVideo                bool

	Remap []cause.RemapRule
}

// Default returns the policy used when no carrier file is configured.
func Default() *Snapshot {
	return &Snapshot{
		SupportDowngradeVtToAudio: true,
		ViLTEDataMetered:          true,
	}
}

// load reads and parses one YAML file into a snapshot.
func load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading carrier config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing carrier config: %w", err)
	}

	rules, err := ParseRemapRules(fc.ReasonRemap)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		AllowEmergencyVideoCalls:         fc.AllowEmergencyVideoCalls,
		TreatDowngradedVideoAsVideo:      fc.TreatDowngradedVideoAsVideo,
		DropVideoWhenAnsweringAudio:      fc.DropVideoWhenAnsweringAudio,
		AllowAddCallDuringVideoCall:      fc.AllowAddCallDuringVideoCall,
		NotifyVtHandoverToWifiFail:       fc.NotifyVtHandoverToWifiFail,
		SupportDowngradeVtToAudio:        fc.SupportDowngradeVtToAudio,
		NotifyHandoverVideoFromWifiToLTE: fc.NotifyHandoverVideoFromWifiToLTE,
		NotifyHandoverVideoFromLTEToWifi: fc.NotifyHandoverVideoFromLTEToWifi,
		IgnoreDataEnabledForVideoCalls:   fc.IgnoreDataEnabledForVideoCalls,
		ViLTEDataMetered:                 fc.ViLTEDataMetered,
		SupportPauseVideo:                fc.SupportPauseVideo,
		Remap:                            rules,
	}, nil
}

// ParseRemapRules parses "fromCode|message|toCode" entries. fromCode
// may be "*" to match any code.
func ParseRemapRules(entries []string) ([]cause.RemapRule, error) {
	var rules []cause.RemapRule
	for _, e := range entries {
		parts := strings.Split(e, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("remap entry %q: want 3 fields, got %d", e, len(parts))
		}

		var rule cause.RemapRule
		from := strings.TrimSpace(parts[0])
		if from == "*" {
			rule.Wildcard = true
		} else {
			code, err := strconv.Atoi(from)
			if err != nil {
				return nil, fmt.Errorf("remap entry %q: bad from code: %w", e, err)
			}
			rule.FromCode = ims.ReasonCode(code)
		}

		rule.Message = strings.TrimSpace(parts[1])

		to, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("remap entry %q: bad to code: %w", e, err)
		}
		rule.ToCode = ims.ReasonCode(to)

		rules = append(rules, rule)
	}
	return rules, nil
}

// Source owns the current snapshot and reloads it from disk on
// demand.
type Source struct {
	path string
	cur  atomic.Pointer[Snapshot]
}

// NewSource loads the carrier file at path. An empty path yields a
// source pinned to the default policy.
func NewSource(path string) (*Source, error) {
	s := &Source{path: path}
	if path == "" {
		s.cur.Store(Default())
		return s, nil
	}
	snap, err := load(path)
	if err != nil {
		return nil, err
	}
	s.cur.Store(snap)
	return s, nil
}

// NewStatic returns a source pinned to the given snapshot, with no
// backing file. Reload is a no-op.
func NewStatic(snap *Snapshot) *Source {
	s := &Source{}
	s.cur.Store(snap)
	return s
}

// Snapshot returns the current policy view.
func (s *Source) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Reload re-reads the carrier file and swaps the snapshot. On error
// the previous snapshot stays in effect.
func (s *Source) Reload() error {
	if s.path == "" {
		return nil
	}
	snap, err := load(s.path)
	if err != nil {
		return err
	}
	s.cur.Store(snap)
	return nil
}
