package spell

import "github.com/hrygo/orchestra/action"

// Action ids of the built-in spells.
const (
	ListSpells                action.ID = "list_spells"
	CreateGymDir              action.ID = "create_gym_dir"
	CreateDailyNote           action.ID = "create_daily_note"
	CreateTomorrowNote        action.ID = "create_tomorrow_note"
	CreateTodayRunningNote    action.ID = "create_today_running_note"
	CreateTodayStairclimbNote action.ID = "create_today_stairclimbing_note"
	CreateTodayMobilityNote   action.ID = "create_today_mobility_note"
	CreateTodayCyclingNote    action.ID = "create_today_cycling_note"
	OpenDrumSession           action.ID = "open_drum_session"
	LaunchStudio              action.ID = "launch_studio"
)

// DefaultSpells is the built-in table. "day" stays last: it is a substring of
// "today" and would otherwise shadow every "... for today" utterance.
func DefaultSpells() []Spell {
	return []Spell{
		{
			Name:        "📖 Spell Book",
			Action:      ListSpells,
			Triggers:    []string{"spell book", "list spells", "show spells"},
			Description: "Shows all available spells and their descriptions",
			Specificity: SpecificityPhrase,
		},
		{
			Name:        "💪 Gym",
			Action:      CreateGymDir,
			Triggers:    []string{"new gym", "muscle up", "gym"},
			Description: "Creates a new gym directory for workout tracking",
		},
		{
			Name:        "🔮 Tomorrow",
			Action:      CreateTomorrowNote,
			Triggers:    []string{"tomorrow"},
			Description: "Creates a daily note for tomorrow",
		},
		{
			Name:        "🏃 Running",
			Action:      CreateTodayRunningNote,
			Triggers:    []string{"running", "run"},
			Description: "Creates a new running note for today",
			AcceptsDate: true,
		},
		{
			Name:        "🧗 Stairclimbing",
			Action:      CreateTodayStairclimbNote,
			Triggers:    []string{"climbing", "stairs"},
			Description: "Creates a new stairclimbing note for today",
			AcceptsDate: true,
		},
		{
			Name:        "🧘 Mobility",
			Action:      CreateTodayMobilityNote,
			Triggers:    []string{"mobility"},
			Description: "Creates a new mobility note for today",
			AcceptsDate: true,
		},
		{
			Name:        "🚴 Cycling",
			Action:      CreateTodayCyclingNote,
			Triggers:    []string{"cycling", "bike"},
			Description: "Creates a new cycling note for today",
			AcceptsDate: true,
		},
		{
			Name:        "🎹 Studio",
			Action:      OpenDrumSession,
			Triggers:    []string{"studio", "music", "fl"},
			Description: "Launches FL Studio and opens the configured project.",
		},
		{
			Name:        "📅 Day",
			Action:      CreateDailyNote,
			Triggers:    []string{"day"},
			Description: "Creates a daily note for today",
			AcceptsDate: true,
		},
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := NewCatalog(DefaultSpells())
	if err != nil {
		panic(err)
	}
	return c
}
