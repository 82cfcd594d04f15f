// Package config loads runtime tuning parameters for the ant and genetic
// engines from a config file, DAGSCHED_* environment variables, and
// viper-registered defaults — the same SetDefault-then-Unmarshal pattern
// used elsewhere in the example pack for session configuration.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/swarmguard/dagsched/internal/aco"
	"github.com/swarmguard/dagsched/internal/ga"
)

// ACOConfig mirrors aco.Params with mapstructure tags for file/env binding.
type ACOConfig struct {
	NumAnts          int     `mapstructure:"num_ants"`
	Alpha            float64 `mapstructure:"alpha"`
	Beta             float64 `mapstructure:"beta"`
	Rho              float64 `mapstructure:"rho"`
	Q0               float64 `mapstructure:"q0"`
	RankSize         int     `mapstructure:"rank_size"`
	ElitistWeight    float64 `mapstructure:"elitist_weight"`
	SoftStagnation   int     `mapstructure:"soft_stagnation"`
	HardStagnation   int     `mapstructure:"hard_stagnation"`
	HardMutateRate   float64 `mapstructure:"hard_mutate_rate"`
	ConvergenceEps   float64 `mapstructure:"convergence_eps"`
	ConvergenceLimit int     `mapstructure:"convergence_limit"`
	Parallelism      int     `mapstructure:"parallelism"`
	Seed             int64   `mapstructure:"seed"`

	RunID           string `mapstructure:"run_id"`
	CheckpointPath  string `mapstructure:"checkpoint_path"`
	CheckpointEvery int    `mapstructure:"checkpoint_every"`
}

// ToParams converts ACOConfig to aco.Params.
func (c ACOConfig) ToParams() aco.Params {
	return aco.Params{
		NumAnts:          c.NumAnts,
		Alpha:            c.Alpha,
		Beta:             c.Beta,
		Rho:              c.Rho,
		Q0:               c.Q0,
		Q0InitMark:       c.Q0,
		RankSize:         c.RankSize,
		ElitistWeight:    c.ElitistWeight,
		SoftStagnation:   c.SoftStagnation,
		HardStagnation:   c.HardStagnation,
		HardMutateRate:   c.HardMutateRate,
		ConvergenceEps:   c.ConvergenceEps,
		ConvergenceLimit: c.ConvergenceLimit,
		Parallelism:      c.Parallelism,
		Seed:             c.Seed,
		RunID:            c.RunID,
		CheckpointPath:   c.CheckpointPath,
		CheckpointEvery:  c.CheckpointEvery,
	}
}

// GAConfig mirrors ga.Params with mapstructure tags for file/env binding.
type GAConfig struct {
	PopSize               int     `mapstructure:"pop_size"`
	TournamentSize        int     `mapstructure:"tournament_size"`
	MutationRate          float64 `mapstructure:"mutation_rate"`
	OrderSwapOuterProb    float64 `mapstructure:"order_swap_outer_prob"`
	OrderSwapInnerProb    float64 `mapstructure:"order_swap_inner_prob"`
	LocalSearchProbNormal float64 `mapstructure:"local_search_prob_normal"`
	StagnationThreshold   int     `mapstructure:"stagnation_threshold"`
	ExplorationDuration   int     `mapstructure:"exploration_duration"`
	Seed                  int64   `mapstructure:"seed"`
}

// ToParams converts GAConfig to ga.Params.
func (c GAConfig) ToParams() ga.Params {
	return ga.Params{
		PopSize:               c.PopSize,
		TournamentSize:        c.TournamentSize,
		MutationRate:          c.MutationRate,
		OrderSwapOuterProb:    c.OrderSwapOuterProb,
		OrderSwapInnerProb:    c.OrderSwapInnerProb,
		LocalSearchProbNormal: c.LocalSearchProbNormal,
		StagnationThreshold:   c.StagnationThreshold,
		ExplorationDuration:   c.ExplorationDuration,
		Seed:                  c.Seed,
	}
}

// IslandConfig configures the island model's population topology on top
// of a shared GAConfig.
type IslandConfig struct {
	NumIslands          int `mapstructure:"num_islands"`
	GenerationsPerRound int `mapstructure:"generations_per_round"`
	Rounds              int `mapstructure:"rounds"`

	RunID           string `mapstructure:"run_id"`
	CheckpointPath  string `mapstructure:"checkpoint_path"`
	CheckpointEvery int    `mapstructure:"checkpoint_every"`
}

// Config holds every run operation's tuning parameters. Values are
// populated from dagsched.yaml (if present on the search path), DAGSCHED_*
// environment variables, and the built-in defaults set below, with viper's
// own precedence: env > file > default.
type Config struct {
	ACO    ACOConfig    `mapstructure:"aco"`
	GA     GAConfig     `mapstructure:"ga"`
	Island IslandConfig `mapstructure:"island"`
}

// Load reads Config from viper, applying defaults for any value not set
// by a config file, environment variable, or prior viper.Set call.
func Load() Config {
	v := viper.New()
	v.SetConfigName("dagsched")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("DAGSCHED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	_ = v.ReadInConfig() // absent config file is not an error; defaults stand

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	def := aco.DefaultParams()
	v.SetDefault("aco.num_ants", def.NumAnts)
	v.SetDefault("aco.alpha", def.Alpha)
	v.SetDefault("aco.beta", def.Beta)
	v.SetDefault("aco.rho", def.Rho)
	v.SetDefault("aco.q0", def.Q0)
	v.SetDefault("aco.rank_size", def.RankSize)
	v.SetDefault("aco.elitist_weight", def.ElitistWeight)
	v.SetDefault("aco.soft_stagnation", def.SoftStagnation)
	v.SetDefault("aco.hard_stagnation", def.HardStagnation)
	v.SetDefault("aco.hard_mutate_rate", def.HardMutateRate)
	v.SetDefault("aco.convergence_eps", def.ConvergenceEps)
	v.SetDefault("aco.convergence_limit", def.ConvergenceLimit)
	v.SetDefault("aco.parallelism", def.Parallelism)
	v.SetDefault("aco.seed", def.Seed)
	v.SetDefault("aco.run_id", def.RunID)
	v.SetDefault("aco.checkpoint_path", def.CheckpointPath)
	v.SetDefault("aco.checkpoint_every", def.CheckpointEvery)

	gaDef := ga.DefaultParams()
	v.SetDefault("ga.pop_size", gaDef.PopSize)
	v.SetDefault("ga.tournament_size", gaDef.TournamentSize)
	v.SetDefault("ga.mutation_rate", gaDef.MutationRate)
	v.SetDefault("ga.order_swap_outer_prob", gaDef.OrderSwapOuterProb)
	v.SetDefault("ga.order_swap_inner_prob", gaDef.OrderSwapInnerProb)
	v.SetDefault("ga.local_search_prob_normal", gaDef.LocalSearchProbNormal)
	v.SetDefault("ga.stagnation_threshold", gaDef.StagnationThreshold)
	v.SetDefault("ga.exploration_duration", gaDef.ExplorationDuration)
	v.SetDefault("ga.seed", gaDef.Seed)

	v.SetDefault("island.num_islands", 4)
	v.SetDefault("island.generations_per_round", 10)
	v.SetDefault("island.rounds", 20)
	v.SetDefault("island.run_id", "")
	v.SetDefault("island.checkpoint_path", "")
	v.SetDefault("island.checkpoint_every", 0)
}
