package deployments

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var ErrNotFound = errors.New("deployment not found")

const SchemaVersion = 1

type Registry struct {
	SchemaVersion int          `json:"schema_version" yaml:"schema_version"`
	Deployments   []Deployment `json:"deployments" yaml:"deployments"`
}

type Deployment struct {
	Name    string `json:"name" yaml:"name"`
	Cluster string `json:"cluster,omitempty" yaml:"cluster,omitempty"`
	RPCURL  string `json:"rpc_url,omitempty" yaml:"rpc_url,omitempty"`

	// LookupTableProgramID owns the derived table addresses. Empty means
	// the native address lookup table program.
	LookupTableProgramID string `json:"lookup_table_program_id,omitempty" yaml:"lookup_table_program_id,omitempty"`
	// RegistryProgramID owns the per-user table pointers.
	RegistryProgramID string `json:"registry_program_id,omitempty" yaml:"registry_program_id,omitempty"`

	CooldownSlots          uint64 `json:"cooldown_slots,omitempty" yaml:"cooldown_slots,omitempty"`
	DeactivationGraceSlots uint64 `json:"deactivation_grace_slots,omitempty" yaml:"deactivation_grace_slots,omitempty"`

	Database       string `json:"database,omitempty" yaml:"database,omitempty"`
	SlotDurationMS int64  `json:"slot_duration_ms,omitempty" yaml:"slot_duration_ms,omitempty"`
	GenesisUnix    int64  `json:"genesis_unix,omitempty" yaml:"genesis_unix,omitempty"`
}

// Params are the parsed, defaulted values of a Deployment.
type Params struct {
	LookupTableProgramID solana.Pubkey
	RegistryProgramID    solana.Pubkey
	Cooldown             uint64
	Grace                uint64
	SlotDuration         time.Duration
	Genesis              time.Time
}

// Load reads a registry from JSON, or from YAML when the file ends in
// .yaml or .yml.
func Load(path string) (Registry, error) {
	var out Registry
	path = strings.TrimSpace(path)
	if path == "" {
		return Registry{}, errors.New("path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &out)
	default:
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		return Registry{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if out.SchemaVersion != 0 && out.SchemaVersion != SchemaVersion {
		return Registry{}, fmt.Errorf("unsupported schema_version %d", out.SchemaVersion)
	}
	return out, nil
}

func (r Registry) FindByName(name string) (Deployment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Deployment{}, errors.New("name required")
	}
	for _, d := range r.Deployments {
		if d.Name == name {
			return d, nil
		}
	}
	return Deployment{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (d Deployment) Params() (Params, error) {
	p := Params{
		LookupTableProgramID: solana.AddressLookupTableProgramID,
		Cooldown:             lut.DefaultCooldown,
		Grace:                lut.DefaultDeactivationGrace,
		SlotDuration:         400 * time.Millisecond,
	}
	if s := strings.TrimSpace(d.LookupTableProgramID); s != "" {
		pk, err := solana.ParsePubkey(s)
		if err != nil {
			return Params{}, fmt.Errorf("lookup_table_program_id: %w", err)
		}
		p.LookupTableProgramID = pk
	}
	if s := strings.TrimSpace(d.RegistryProgramID); s != "" {
		pk, err := solana.ParsePubkey(s)
		if err != nil {
			return Params{}, fmt.Errorf("registry_program_id: %w", err)
		}
		p.RegistryProgramID = pk
	}
	if d.CooldownSlots != 0 {
		p.Cooldown = d.CooldownSlots
	}
	if d.DeactivationGraceSlots != 0 {
		p.Grace = d.DeactivationGraceSlots
	}
	if d.SlotDurationMS < 0 {
		return Params{}, errors.New("slot_duration_ms must be positive")
	}
	if d.SlotDurationMS > 0 {
		p.SlotDuration = time.Duration(d.SlotDurationMS) * time.Millisecond
	}
	if d.GenesisUnix > 0 {
		p.Genesis = time.Unix(d.GenesisUnix, 0).UTC()
	}
	return p, nil
}
