package services

import (
	"log/slog"
	"time"

	"go-gatewatch/internal/detector/models"
	"go-gatewatch/pkg/config"

	"github.com/go-playground/validator/v10"
)

// PermanentCamp marks a system whose named gates are camped around the clock.
type PermanentCamp struct {
	Gates  []string
	Weight float64
}

// Config carries every tunable threshold and static table the engine uses.
// All of it is injected at construction; the engine holds no globals.
type Config struct {
	CampTimeout           time.Duration `validate:"gt=0"`
	RoamTimeout           time.Duration `validate:"gt=0"`
	DecayStart            time.Duration `validate:"gt=0"`
	MemberIdleTimeout     time.Duration `validate:"gt=0"`
	MemberDepartedTimeout time.Duration `validate:"gt=0"`

	BattleThreshold int     `validate:"gt=0"`
	MinKillsToSave  int     `validate:"gte=0"`
	MatchThreshold  float64 `validate:"gt=0,lte=1"`

	CapsuleShipID       int64 `validate:"gt=0"`
	MobileTractorShipID int64 `validate:"gt=0"`

	ThreatShips      map[int64]float64
	SmartbombShips   map[int64]struct{}
	SmartbombWeapons map[int64]struct{}
	InterdictorShips map[int64]struct{}
	PermanentCamps   map[int64]PermanentCamp
}

// Probability pipeline constants. These mirror the tuning the classifier was
// trained against and are not exposed as env knobs.
const (
	burstWindow           = 2 * time.Minute
	burstPenalty          = 0.20
	burstMaxCampAge       = 15 * time.Minute
	threatScoreCap        = 0.50
	smartbombBaseBonus    = 0.16
	smartbombShipBonus    = 0.30
	smartbombSoloBonus    = 0.15
	vulnerableSingle      = 0.20
	vulnerableMulti       = 0.40
	consistencyBonus      = 0.15
	consistencyCap        = 0.30
	widelySpacedGap       = 5 * time.Minute
	widelySpacedBonus     = 0.15
	widelySpacedCap       = 0.45
	podBonusPerKill       = 0.03
	podBonusCap           = 0.15
	overallProbabilityCap = 0.95
	minProbabilityPct     = 5
	decayRatePerMinute    = 0.10
)

// DefaultConfig returns the production configuration: reference timeouts plus
// the curated ship and location tables.
func DefaultConfig() *Config {
	return &Config{
		CampTimeout:           30 * time.Minute,
		RoamTimeout:           15 * time.Minute,
		DecayStart:            5 * time.Minute,
		MemberIdleTimeout:     15 * time.Minute,
		MemberDepartedTimeout: 45 * time.Minute,
		BattleThreshold:       40,
		MinKillsToSave:        2,
		MatchThreshold:        0.35,
		CapsuleShipID:         670,
		MobileTractorShipID:   35834,
		ThreatShips:           defaultThreatShips(),
		SmartbombShips:        idSet(17738, 3756, 29988, 47466),
		SmartbombWeapons:      defaultSmartbombWeapons(),
		InterdictorShips:      idSet(22456, 22452, 22460, 22464, 12013, 11995, 12021, 12017),
		PermanentCamps:        defaultPermanentCamps(),
	}
}

// ConfigFromEnv builds the engine configuration from environment variables,
// falling back to the defaults for anything unset. Overrides that fail
// validation are discarded wholesale. The static tables are not env-tunable.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.CampTimeout = config.GetDurationEnv("DETECTOR_CAMP_TIMEOUT", cfg.CampTimeout)
	cfg.RoamTimeout = config.GetDurationEnv("DETECTOR_ROAM_TIMEOUT", cfg.RoamTimeout)
	cfg.DecayStart = config.GetDurationEnv("DETECTOR_DECAY_START", cfg.DecayStart)
	cfg.MemberIdleTimeout = config.GetDurationEnv("DETECTOR_MEMBER_IDLE_TIMEOUT", cfg.MemberIdleTimeout)
	cfg.MemberDepartedTimeout = config.GetDurationEnv("DETECTOR_MEMBER_DEPARTED_TIMEOUT", cfg.MemberDepartedTimeout)
	cfg.BattleThreshold = config.GetIntEnv("DETECTOR_BATTLE_THRESHOLD", cfg.BattleThreshold)
	cfg.MinKillsToSave = config.GetIntEnv("DETECTOR_MIN_KILLS_TO_SAVE", cfg.MinKillsToSave)
	cfg.MatchThreshold = config.GetFloatEnv("DETECTOR_MATCH_THRESHOLD", cfg.MatchThreshold)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid detector configuration from environment, using defaults", "error", err)
		return DefaultConfig()
	}
	return cfg
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func (c *Config) timeoutFor(class models.Classification) time.Duration {
	if class.IsCampLike() {
		return c.CampTimeout
	}
	return c.RoamTimeout
}

func idSet(ids ...int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// defaultThreatShips maps hull type IDs to camp-probability weight. The list
// skews toward tackle and interdiction platforms.
func defaultThreatShips() map[int64]float64 {
	return map[int64]float64{
		3756:  0.20, // Gnosis
		11202: 0.03, // Ares
		11196: 0.11, // Stiletto
		11176: 0.04, // Crow
		11184: 0.03, // Crusader
		11186: 0.08, // Malediction
		11200: 0.03, // Taranis
		11178: 0.04, // Raptor
		29988: 0.35, // Proteus
		20125: 0.20, // Curse
		17722: 0.25, // Vigilant
		22456: 0.50, // Sabre
		22464: 0.44, // Flycatcher
		22452: 0.44, // Heretic
		22460: 0.44, // Eris
		12013: 0.40, // Broadsword
		11995: 0.40, // Onyx
		12021: 0.40, // Phobos
		12017: 0.40, // Devoter
		29984: 0.15, // Tengu
		29990: 0.29, // Loki
		11174: 0.30, // Keres
		35683: 0.05, // Hecate
		11969: 0.30, // Arazu
		11961: 0.30, // Huginn
		11957: 0.04, // Falcon
		29986: 0.09, // Legion
		47466: 0.10, // Praxis
		12038: 0.05, // Purifier
		12034: 0.05, // Hound
		17720: 0.12, // Cynabal
		11963: 0.16, // Rapier
		12044: 0.08, // Enyo
		17922: 0.18, // Ashimmu
		11999: 0.06, // Vagabond
		85086: 0.04, // Cenotaph
		33818: 0.03, // Orthrus
		11971: 0.22, // Lachesis
		4310:  0.01, // Tornado
		17738: 0.01, // Machariel
		11387: 0.03, // Hyena
	}
}

// defaultSmartbombWeapons lists the weapon type IDs that mark a kill as
// smartbomb-delivered. Only exact matches count.
func defaultSmartbombWeapons() map[int64]struct{} {
	return idSet(
		// Large T1 / T2
		3993, 3977, 3987, 3981, 3983, 3989, 3979, 3995,
		// Medium T2
		3955, 3939, 3949, 3943,
		// Large EMP, faction and officer
		15963, 28545, 14190, 14792, 9678, 23868, 14794, 15947,
		14784, 14796, 14188, 14798, 14790, 14788, 14786,
		// Large Proton
		9772, 21538, 14208, 14548, 14546, 14544, 15939, 14550,
		// Large Plasma
		15955, 15156, 14206, 15154, 84496, 9808, 15152, 15158,
		// Large Graviton
		14694, 14696, 84495, 9668, 15931, 14204, 14698, 14692,
		// Medium Plasma
		15953, 14220, 84498, 9800,
		// Medium Proton
		14222, 15937, 21536, 9762,
		// Medium Graviton
		15929, 14210, 84497, 9728,
		// Medium EMP
		14192, 14194, 15961, 23866, 9734, 15945,
	)
}

// defaultPermanentCamps lists systems with standing camps on specific gates.
func defaultPermanentCamps() map[int64]PermanentCamp {
	return map[int64]PermanentCamp{
		30002813: {Gates: []string{"Nourvukaiken", "Kedama"}, Weight: 0.50}, // Tama
		30003068: {Gates: []string{"Miroitem", "Crielere"}, Weight: 0.50},  // Rancer
		30000142: {Gates: []string{"Perimeter"}, Weight: 0.25},             // Jita
		30002647: {Gates: []string{"Iyen-Oursta"}, Weight: 0.30},           // Ignoitton
		30005196: {Gates: []string{"Shera"}, Weight: 0.40},                 // Ahbazon
	}
}
