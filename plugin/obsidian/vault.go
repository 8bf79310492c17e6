// Package obsidian implements the note vault actions: gym directories, daily
// notes and per-workout notes laid out by year and month.
package obsidian

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/spell"
)

// DateLayout is the date format accepted by the date argument.
const DateLayout = "2006-01-02"

// GymGroups is the rotation of exercise groups for gym directories.
var GymGroups = []string{"chest", "back", "legs", "arms"}

var (
	// ErrVaultNotConfigured is returned when the required vault path is empty.
	ErrVaultNotConfigured = errors.New("vault path is not configured")
	// ErrInvalidDate is returned for a date argument not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)

// Workout is a kind of workout note.
type Workout string

const (
	Running       Workout = "running"
	Cycling       Workout = "cycling"
	Stairclimbing Workout = "stairclimbing"
	Mobility      Workout = "mobility"
)

// Workouts lists the supported workout note kinds.
var Workouts = []Workout{Running, Cycling, Stairclimbing, Mobility}

// dir is the vault folder holding notes of this kind, e.g. "Running".
func (w Workout) dir() string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(string(w[:1])) + string(w[1:])
}

// Vault performs note actions against a main vault and an exercise vault.
type Vault struct {
	fs           afero.Fs
	mainPath     string
	exercisePath string
	now          func() time.Time
}

// Option configures a Vault.
type Option func(*Vault)

// WithClock overrides the clock used to date new notes.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// NewVault creates a vault over fs. Either path may be empty; actions that
// need it then fail with ErrVaultNotConfigured.
func NewVault(fs afero.Fs, mainPath, exercisePath string, opts ...Option) *Vault {
	v := &Vault{
		fs:           fs,
		mainPath:     mainPath,
		exercisePath: exercisePath,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ParseDate parses s as YYYY-MM-DD in now's location. An empty s yields now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidDate, "%q", s)
	}
	return t, nil
}

// CreateGymDir creates today's gym directory for the next group in the
// rotation and seeds it with the .md files of the previous directory of the
// same group. It returns the directory path. When today's directory already
// exists it is returned unchanged.
func (v *Vault) CreateGymDir(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v.exercisePath == "" {
		return "", errors.Wrap(ErrVaultNotConfigured, "OBSIDIAN_EXERCISE_VAULT_PATH")
	}

	today := v.now()
	todayStr := today.Format(DateLayout)
	base := filepath.Join(v.exercisePath, "Weightlifting")

	gymDirs, err := v.findGymDirs(base)
	if err != nil {
		return "", err
	}

	next := GymGroups[0]
	if len(gymDirs) > 0 {
		latest := gymDirs[len(gymDirs)-1]
		if strings.HasPrefix(filepath.Base(latest), todayStr) {
			slog.Info("gym directory for today already exists", "path", latest)
			return latest, nil
		}
		next = nextGroup(filepath.Base(latest))
	}

	newDir := filepath.Join(base, datedDir(today), fmt.Sprintf("%s gym %s", todayStr, next))
	if err := v.fs.MkdirAll(newDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create gym directory %s", newDir)
	}
	slog.Info("created gym directory", "path", newDir, "group", next)

	var prev string
	for _, d := range gymDirs {
		name := filepath.Base(d)
		if strings.HasSuffix(name, "gym "+next) && !strings.Contains(name, todayStr) {
			prev = d
		}
	}
	if prev == "" {
		slog.Info("no previous gym directory for group, nothing copied", "group", next)
		return newDir, nil
	}

	copied, err := v.copyMarkdown(prev, newDir)
	if err != nil {
		return newDir, err
	}
	slog.Info("copied gym notes", "from", prev, "to", newDir, "files", copied)
	return newDir, nil
}

// CreateDailyNote creates the daily note for date ("" means today).
func (v *Vault) CreateDailyNote(ctx context.Context, date string) (string, error) {
	day, err := ParseDate(date, v.now())
	if err != nil {
		return "", err
	}
	return v.createDailyNote(ctx, day)
}

// CreateTomorrowNote creates the daily note for tomorrow.
func (v *Vault) CreateTomorrowNote(ctx context.Context) (string, error) {
	return v.createDailyNote(ctx, v.now().AddDate(0, 0, 1))
}

func (v *Vault) createDailyNote(ctx context.Context, day time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v.mainPath == "" {
		return "", errors.Wrap(ErrVaultNotConfigured, "OBSIDIAN_MAIN_VAULT_PATH")
	}
	path := filepath.Join(v.mainPath, "Daily", datedDir(day), day.Format(DateLayout)+".md")
	return path, v.writeNote(path, dailyNote(day))
}

// CreateWorkoutNote creates the note for kind on date ("" means today).
func (v *Vault) CreateWorkoutNote(ctx context.Context, kind Workout, date string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validWorkout(kind) {
		return "", errors.Errorf("unknown workout kind %q", kind)
	}
	if v.exercisePath == "" {
		return "", errors.Wrap(ErrVaultNotConfigured, "OBSIDIAN_EXERCISE_VAULT_PATH")
	}
	day, err := ParseDate(date, v.now())
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s %s.md", day.Format(DateLayout), kind)
	path := filepath.Join(v.exercisePath, kind.dir(), datedDir(day), name)
	return path, v.writeNote(path, workoutNote(kind, day))
}

// Handlers returns the registry entries backed by this vault.
func (v *Vault) Handlers() map[action.ID]action.Handler {
	workout := func(kind Workout) action.Handler {
		return action.ArgsFunc(func(ctx context.Context, args action.Args) error {
			_, err := v.CreateWorkoutNote(ctx, kind, args.Get("date"))
			return err
		})
	}
	return map[action.ID]action.Handler{
		spell.CreateGymDir: action.ArgsFunc(func(ctx context.Context, _ action.Args) error {
			_, err := v.CreateGymDir(ctx)
			return err
		}),
		spell.CreateDailyNote: action.ArgsFunc(func(ctx context.Context, args action.Args) error {
			_, err := v.CreateDailyNote(ctx, args.Get("date"))
			return err
		}),
		spell.CreateTomorrowNote: action.ArgsFunc(func(ctx context.Context, _ action.Args) error {
			_, err := v.CreateTomorrowNote(ctx)
			return err
		}),
		spell.CreateTodayRunningNote:    workout(Running),
		spell.CreateTodayCyclingNote:    workout(Cycling),
		spell.CreateTodayStairclimbNote: workout(Stairclimbing),
		spell.CreateTodayMobilityNote:   workout(Mobility),
	}
}

// findGymDirs returns every "<date> gym <group>" directory under base,
// sorted by path so the last entry is the most recent.
func (v *Vault) findGymDirs(base string) ([]string, error) {
	exists, err := afero.DirExists(v.fs, base)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", base)
	}
	if !exists {
		return nil, nil
	}

	var dirs []string
	err = afero.Walk(v.fs, base, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != base && strings.Contains(info.Name(), "gym ") {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", base)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (v *Vault) copyMarkdown(from, to string) (int, error) {
	entries, err := afero.ReadDir(v.fs, from)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list %s", from)
	}
	copied := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		src := filepath.Join(from, e.Name())
		data, err := afero.ReadFile(v.fs, src)
		if err != nil {
			return copied, errors.Wrapf(err, "failed to read %s", src)
		}
		dst := filepath.Join(to, e.Name())
		if err := afero.WriteFile(v.fs, dst, data, e.Mode().Perm()); err != nil {
			return copied, errors.Wrapf(err, "failed to write %s", dst)
		}
		_ = v.fs.Chtimes(dst, e.ModTime(), e.ModTime())
		copied++
	}
	return copied, nil
}

// writeNote creates path with content. An existing note is never overwritten.
func (v *Vault) writeNote(path, content string) error {
	exists, err := afero.Exists(v.fs, path)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", path)
	}
	if exists {
		slog.Info("note already exists", "path", path)
		return nil
	}
	if err := v.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := afero.WriteFile(v.fs, path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	slog.Info("created note", "path", path)
	return nil
}

func nextGroup(dirName string) string {
	fields := strings.Fields(dirName)
	if len(fields) == 0 {
		return GymGroups[0]
	}
	last := fields[len(fields)-1]
	for i, g := range GymGroups {
		if g == last {
			return GymGroups[(i+1)%len(GymGroups)]
		}
	}
	return GymGroups[0]
}

func validWorkout(kind Workout) bool {
	for _, w := range Workouts {
		if w == kind {
			return true
		}
	}
	return false
}

// datedDir returns "YYYY/YYYY-MM".
func datedDir(t time.Time) string {
	return filepath.Join(t.Format("2006"), t.Format("2006-01"))
}
