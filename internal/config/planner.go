package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/pathing/internal/command"
	"github.com/banshee-data/pathing/internal/compiler"
	"github.com/banshee-data/pathing/internal/grid"
	"github.com/banshee-data/pathing/internal/motion"
)

// DefaultConfigPath is the path to the canonical planner defaults file.
const DefaultConfigPath = "config/planner.defaults.json"

// PlannerConfig describes the arena, the robot's turning geometry and the
// wire vocabulary. Every field is optional; Get* accessors fall back to the
// defaults measured on the reference robot, so partial configs are safe.
type PlannerConfig struct {
	// Arena
	GridSize *int            `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	CellCM   *int            `json:"cell_cm,omitempty" yaml:"cell_cm,omitempty"`
	Blocked  []grid.Position `json:"blocked,omitempty" yaml:"blocked,omitempty"`

	// Robot
	TurnRadiusCM  *int         `json:"turn_radius_cm,omitempty" yaml:"turn_radius_cm,omitempty"`
	TurnOffsets   *TurnOffsets `json:"turn_offsets,omitempty" yaml:"turn_offsets,omitempty"`
	MaxPrimitives *int         `json:"max_primitives,omitempty" yaml:"max_primitives,omitempty"`
	Start         *StartPose   `json:"start,omitempty" yaml:"start,omitempty"`

	// Wire format
	Encoding *string        `json:"encoding,omitempty" yaml:"encoding,omitempty"` // "compact" or "classic"
	Tokens   *command.Table `json:"tokens,omitempty" yaml:"tokens,omitempty"`     // per-token overrides

	// Robot link
	AckToken   *string `json:"ack_token,omitempty" yaml:"ack_token,omitempty"`
	AckTimeout *string `json:"ack_timeout,omitempty" yaml:"ack_timeout,omitempty"` // duration string like "30s"
}

// TurnOffsets overrides the robot-frame displacement of each quarter turn.
type TurnOffsets struct {
	ForwardLeft   *grid.TurnOffset `json:"forward_left,omitempty" yaml:"forward_left,omitempty"`
	ForwardRight  *grid.TurnOffset `json:"forward_right,omitempty" yaml:"forward_right,omitempty"`
	BackwardLeft  *grid.TurnOffset `json:"backward_left,omitempty" yaml:"backward_left,omitempty"`
	BackwardRight *grid.TurnOffset `json:"backward_right,omitempty" yaml:"backward_right,omitempty"`
}

// StartPose is the robot pose at the start of every run.
type StartPose struct {
	X       int    `json:"x" yaml:"x"`
	Y       int    `json:"y" yaml:"y"`
	Heading string `json:"heading" yaml:"heading"`
}

func ptrInt(v int) *int          { return &v }
func ptrString(v string) *string { return &v }

// EmptyPlannerConfig returns a PlannerConfig with all fields unset.
func EmptyPlannerConfig() *PlannerConfig {
	return &PlannerConfig{}
}

// DefaultPlannerConfig returns a PlannerConfig with every field populated
// from the built-in defaults.
func DefaultPlannerConfig() *PlannerConfig {
	g := grid.DefaultGeometry()
	return &PlannerConfig{
		GridSize:      ptrInt(g.GridSize),
		CellCM:        ptrInt(g.CellCM),
		TurnRadiusCM:  ptrInt(g.TurnRadiusCM),
		MaxPrimitives: ptrInt(motion.DefaultMaxPrimitives),
		TurnOffsets: &TurnOffsets{
			ForwardLeft:   &g.ForwardLeft,
			ForwardRight:  &g.ForwardRight,
			BackwardLeft:  &g.BackwardLeft,
			BackwardRight: &g.BackwardRight,
		},
		Start:      &StartPose{X: 1, Y: 1, Heading: "N"},
		Encoding:   ptrString(command.Compact.Name),
		AckToken:   ptrString("ACK"),
		AckTimeout: ptrString("30s"),
	}
}

// LoadPlannerConfig loads a PlannerConfig from a .json, .yaml or .yml file.
// The file must be under 1MB. Fields omitted from the file keep their
// defaults.
func LoadPlannerConfig(path string) (*PlannerConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPlannerConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded, intended for test setup.
func MustLoadDefaultConfig() *PlannerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPlannerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values describe a usable planner.
func (c *PlannerConfig) Validate() error {
	if c.GridSize != nil && (*c.GridSize < 1 || *c.GridSize > 1000) {
		return fmt.Errorf("grid_size must be between 1 and 1000, got %d", *c.GridSize)
	}
	if c.CellCM != nil && *c.CellCM <= 0 {
		return fmt.Errorf("cell_cm must be positive, got %d", *c.CellCM)
	}
	if c.TurnRadiusCM != nil && *c.TurnRadiusCM <= 0 {
		return fmt.Errorf("turn_radius_cm must be positive, got %d", *c.TurnRadiusCM)
	}
	// The synthesizer enumerates 4^n turn sequences.
	if c.MaxPrimitives != nil && (*c.MaxPrimitives < 1 || *c.MaxPrimitives > 8) {
		return fmt.Errorf("max_primitives must be between 1 and 8, got %d", *c.MaxPrimitives)
	}

	g := c.Geometry()
	// straights are never split, so the longest run must fit the token
	if longest := (g.GridSize - 1) * g.CellCM; longest > command.MaxStraightCM {
		return fmt.Errorf("grid_size %d with cell_cm %d allows %dcm straight runs, more than the %dcm a token carries",
			g.GridSize, g.CellCM, longest, command.MaxStraightCM)
	}
	for _, p := range c.Blocked {
		if !g.InBounds(p) {
			return fmt.Errorf("blocked cell %s outside %dx%d grid", p, g.GridSize, g.GridSize)
		}
	}
	if _, err := c.StartPose(); err != nil {
		return err
	}
	if _, err := c.EncodingTable(); err != nil {
		return err
	}
	if c.AckTimeout != nil && *c.AckTimeout != "" {
		d, err := time.ParseDuration(*c.AckTimeout)
		if err != nil {
			return fmt.Errorf("invalid ack_timeout '%s': %w", *c.AckTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("ack_timeout must be positive, got %s", d)
		}
	}
	return nil
}

// GetGridSize returns the grid_size value or the default.
func (c *PlannerConfig) GetGridSize() int {
	if c.GridSize == nil {
		return grid.DefaultGeometry().GridSize
	}
	return *c.GridSize
}

// GetCellCM returns the cell_cm value or the default.
func (c *PlannerConfig) GetCellCM() int {
	if c.CellCM == nil {
		return grid.DefaultGeometry().CellCM
	}
	return *c.CellCM
}

// GetTurnRadiusCM returns the turn_radius_cm value or the default.
func (c *PlannerConfig) GetTurnRadiusCM() int {
	if c.TurnRadiusCM == nil {
		return grid.DefaultGeometry().TurnRadiusCM
	}
	return *c.TurnRadiusCM
}

// GetMaxPrimitives returns the max_primitives value or the default.
func (c *PlannerConfig) GetMaxPrimitives() int {
	if c.MaxPrimitives == nil {
		return motion.DefaultMaxPrimitives
	}
	return *c.MaxPrimitives
}

// GetAckToken returns the line the robot sends after finishing a command.
func (c *PlannerConfig) GetAckToken() string {
	if c.AckToken == nil || *c.AckToken == "" {
		return "ACK"
	}
	return *c.AckToken
}

// GetAckTimeout parses and returns the AckTimeout as a time.Duration.
func (c *PlannerConfig) GetAckTimeout() time.Duration {
	if c.AckTimeout == nil || *c.AckTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(*c.AckTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Geometry builds the arena and robot geometry.
func (c *PlannerConfig) Geometry() grid.Geometry {
	g := grid.DefaultGeometry()
	g.GridSize = c.GetGridSize()
	g.CellCM = c.GetCellCM()
	g.TurnRadiusCM = c.GetTurnRadiusCM()
	if o := c.TurnOffsets; o != nil {
		if o.ForwardLeft != nil {
			g.ForwardLeft = *o.ForwardLeft
		}
		if o.ForwardRight != nil {
			g.ForwardRight = *o.ForwardRight
		}
		if o.BackwardLeft != nil {
			g.BackwardLeft = *o.BackwardLeft
		}
		if o.BackwardRight != nil {
			g.BackwardRight = *o.BackwardRight
		}
	}
	if len(c.Blocked) > 0 {
		g.Blocked = make(map[grid.Position]bool, len(c.Blocked))
		for _, p := range c.Blocked {
			g.Blocked[p] = true
		}
	}
	return g
}

// StartPose returns the configured start pose, (1,1) facing north by default.
func (c *PlannerConfig) StartPose() (grid.Pose, error) {
	if c.Start == nil {
		return grid.NewPose(1, 1, grid.North), nil
	}
	h, err := grid.ParseHeading(c.Start.Heading)
	if err != nil {
		return grid.Pose{}, fmt.Errorf("start: %w", err)
	}
	p := grid.NewPose(c.Start.X, c.Start.Y, h)
	if err := c.Geometry().CheckBounds(p.Position); err != nil {
		return grid.Pose{}, fmt.Errorf("start: %w", err)
	}
	return p, nil
}

// EncodingTable returns the selected built-in table with any token
// overrides applied, validated.
func (c *PlannerConfig) EncodingTable() (command.Table, error) {
	name := ""
	if c.Encoding != nil {
		name = *c.Encoding
	}
	t, err := command.LookupTable(name)
	if err != nil {
		return command.Table{}, err
	}
	if o := c.Tokens; o != nil {
		override := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		override(&t.StraightForward, o.StraightForward)
		override(&t.StraightBackward, o.StraightBackward)
		override(&t.ForwardLeft, o.ForwardLeft)
		override(&t.ForwardRight, o.ForwardRight)
		override(&t.BackwardLeft, o.BackwardLeft)
		override(&t.BackwardRight, o.BackwardRight)
		override(&t.Scan, o.Scan)
		override(&t.Finish, o.Finish)
		t.Name += "+overrides"
	}
	if err := t.Validate(); err != nil {
		return command.Table{}, fmt.Errorf("tokens: %w", err)
	}
	return t, nil
}

// NewCompiler builds a compiler for the configured geometry and vocabulary.
func (c *PlannerConfig) NewCompiler() (*compiler.Compiler, error) {
	t, err := c.EncodingTable()
	if err != nil {
		return nil, err
	}
	g := c.Geometry()
	enc, err := command.NewEncoder(t, g.TurnRadiusCM)
	if err != nil {
		return nil, err
	}
	return compiler.New(motion.NewSynthesizer(g, c.GetMaxPrimitives()), enc), nil
}
