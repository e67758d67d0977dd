package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/shlex"

	"ddsgen/host/ddsctl"
	"ddsgen/host/wsbridge"
)

// generator is the ddsctl.Client surface the shell uses
type generator interface {
	Init() error
	Program(frequencyHz uint32, phaseRadians float64) error
	State() (ddsctl.State, error)
	Status() (ddsctl.Status, error)
	Clock() (uint32, error)
	Reset() error
	Dictionary() *ddsctl.Dictionary
	RawDictionary() []byte
}

var errUsage = errors.New("usage")

type styles struct {
	prompt lipgloss.Style
	title  lipgloss.Style
	key    lipgloss.Style
	value  lipgloss.Style
	err    lipgloss.Style
}

func newStyles() styles {
	return styles{
		prompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(2)),
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(4)),
		key:    lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(6)),
		value:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(3)),
		err:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(1)),
	}
}

type shell struct {
	gen    generator
	out    io.Writer
	styles styles

	// listen blocks; tests replace it
	serveFn func(addr string, h http.Handler) error
}

func newShell(gen generator, out io.Writer) *shell {
	return &shell{
		gen:     gen,
		out:     out,
		styles:  newStyles(),
		serveFn: http.ListenAndServe,
	}
}

type command struct {
	args  string
	help  string
	run   func(sh *shell, args []string) error
	quits bool
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    {"", "Show this help message", (*shell).help, false},
		"dict":    {"", "Print the dictionary summary", (*shell).dict, false},
		"raw":     {"", "Print the raw dictionary JSON", (*shell).raw, false},
		"init":    {"", "Reset the generator to 0 Hz, 0 rad", (*shell).initialize, false},
		"program": {"<freq> [deg]", "Set frequency and phase together", (*shell).program, false},
		"freq":    {"<freq>", "Set frequency, keep phase", (*shell).freq, false},
		"phase":   {"<rad>", "Set phase in radians, keep frequency", (*shell).phase, false},
		"deg":     {"<deg>", "Set phase in degrees, keep frequency", (*shell).deg, false},
		"state":   {"", "Show the applied tuning", (*shell).state, false},
		"status":  {"", "Show init flag and update count", (*shell).status, false},
		"clock":   {"", "Read the firmware timer", (*shell).clock, false},
		"reset":   {"", "Reboot the firmware", (*shell).reset, true},
		"serve":   {"<addr>", "Serve the websocket bridge (blocks)", (*shell).serve, true},
		"quit":    {"", "Exit", nil, true},
	}
	commands["exit"] = commands["quit"]
	commands["q"] = commands["quit"]
	commands["?"] = commands["help"]
}

// exec splits line like a shell and runs it
func (sh *shell) exec(line string) (quit bool, err error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	return sh.run(args)
}

func (sh *shell) run(args []string) (bool, error) {
	cmd, ok := commands[args[0]]
	if !ok {
		return false, fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
	if cmd.run == nil {
		return true, nil
	}
	err := cmd.run(sh, args[1:])
	if errors.Is(err, errUsage) {
		return false, fmt.Errorf("usage: %s %s", args[0], cmd.args)
	}
	return cmd.quits && err == nil, err
}

func (sh *shell) fail(err error) {
	fmt.Fprintln(sh.out, sh.styles.err.Render("Error: "+err.Error()))
}

func (sh *shell) banner(device string) {
	fmt.Fprintln(sh.out, sh.styles.title.Render(" ddsctl "), "connected to", device)
	if d := sh.gen.Dictionary(); d != nil {
		fmt.Fprintln(sh.out, "firmware", d.Version)
	}
	fmt.Fprintln(sh.out, "Type 'help' for available commands.")
}

func (sh *shell) kv(key string, value any) {
	fmt.Fprintf(sh.out, "  %s %s\n", sh.styles.key.Render(fmt.Sprintf("%-12s", key)), sh.styles.value.Render(fmt.Sprint(value)))
}

func (sh *shell) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name, cmd := range commands {
		if name == "exit" || name == "q" || name == "?" || cmd.help == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(sh.out, "Available commands:")
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(sh.out, "  %-22s %s\n", name+" "+cmd.args, cmd.help)
	}
	fmt.Fprintln(sh.out, "Frequencies take Hz, k, M suffixes: 440, 12.5k, 1MHz")
	return nil
}

func (sh *shell) dict(args []string) error {
	d := sh.gen.Dictionary()
	if d == nil {
		return ddsctl.ErrNoDictionary
	}
	fmt.Fprintln(sh.out, sh.styles.title.Render(" dictionary "))
	sh.kv("version", d.Version)
	sh.kv("build", d.BuildVersions)
	for _, name := range sortedKeys(d.Config) {
		sh.kv(name, d.Config[name])
	}
	fmt.Fprintf(sh.out, "commands (%d):\n", len(d.Commands))
	for _, sig := range sortedKeys(d.Commands) {
		fmt.Fprintf(sh.out, "  [%2d] %s\n", d.Commands[sig], sig)
	}
	fmt.Fprintf(sh.out, "responses (%d):\n", len(d.Responses))
	for _, sig := range sortedKeys(d.Responses) {
		fmt.Fprintf(sh.out, "  [%2d] %s\n", d.Responses[sig], sig)
	}
	for _, name := range sortedKeys(d.Enumerations) {
		fmt.Fprintf(sh.out, "enumeration %s: %d values\n", name, len(d.Enumerations[name]))
	}
	return nil
}

func (sh *shell) raw(args []string) error {
	raw := sh.gen.RawDictionary()
	fmt.Fprintf(sh.out, "%d bytes\n%s\n", len(raw), raw)
	return nil
}

func (sh *shell) initialize(args []string) error {
	if err := sh.gen.Init(); err != nil {
		return err
	}
	return sh.state(nil)
}

func (sh *shell) program(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	hz, err := parseFrequency(args[0])
	if err != nil {
		return err
	}
	var rad float64
	if len(args) == 2 {
		deg, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("phase %q: %w", args[1], err)
		}
		rad = deg * math.Pi / 180
	}
	return sh.apply(hz, rad)
}

func (sh *shell) freq(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	hz, err := parseFrequency(args[0])
	if err != nil {
		return err
	}
	st, err := sh.gen.State()
	if err != nil {
		return err
	}
	return sh.apply(hz, st.PhaseRadians)
}

func (sh *shell) phase(args []string) error {
	return sh.setPhase(args, 1)
}

func (sh *shell) deg(args []string) error {
	return sh.setPhase(args, math.Pi/180)
}

func (sh *shell) setPhase(args []string, scale float64) error {
	if len(args) != 1 {
		return errUsage
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("phase %q: %w", args[0], err)
	}
	st, err := sh.gen.State()
	if err != nil {
		return err
	}
	return sh.apply(st.FrequencyHz, v*scale)
}

func (sh *shell) apply(hz uint32, rad float64) error {
	if err := sh.gen.Program(hz, rad); err != nil {
		return err
	}
	return sh.state(nil)
}

func (sh *shell) state(args []string) error {
	st, err := sh.gen.State()
	if err != nil {
		return err
	}
	sh.kv("frequency", formatFrequency(st.FrequencyHz))
	sh.kv("phase", fmt.Sprintf("%.6f rad (%.2f deg)", st.PhaseRadians, st.PhaseRadians*180/math.Pi))
	sh.kv("buffer", string(rune('A'+st.Buffer)))
	sh.kv("freq_word", fmt.Sprintf("0x%07X", st.FreqWord))
	sh.kv("phase_word", fmt.Sprintf("0x%03X", st.PhaseWord))
	return nil
}

func (sh *shell) status(args []string) error {
	s, err := sh.gen.Status()
	if err != nil {
		return err
	}
	sh.kv("initialized", s.Initialized)
	sh.kv("updates", s.Updates)
	return nil
}

func (sh *shell) clock(args []string) error {
	c, err := sh.gen.Clock()
	if err != nil {
		return err
	}
	sh.kv("clock", c)
	return nil
}

func (sh *shell) reset(args []string) error {
	return sh.gen.Reset()
}

func (sh *shell) serve(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return sh.listen(args[0])
}

func (sh *shell) listen(addr string) error {
	fmt.Fprintf(sh.out, "websocket bridge on ws://%s/ws\n", addr)
	return sh.serveFn(addr, wsbridge.New(sh.gen).Handler())
}

// parseFrequency accepts a number with an optional k, M or Hz suffix
// ("1.5MHz", "12k", "440").
func parseFrequency(s string) (uint32, error) {
	v := strings.TrimSuffix(strings.TrimSuffix(s, "Hz"), "hz")
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "k"), strings.HasSuffix(v, "K"):
		scale, v = 1e3, v[:len(v)-1]
	case strings.HasSuffix(v, "M"), strings.HasSuffix(v, "m"):
		scale, v = 1e6, v[:len(v)-1]
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("frequency %q: %w", s, err)
	}
	hz := math.Round(f * scale)
	if hz < 0 || hz > math.MaxUint32 {
		return 0, fmt.Errorf("frequency %q out of range", s)
	}
	return uint32(hz), nil
}

func formatFrequency(hz uint32) string {
	switch {
	case hz >= 1000000:
		return strconv.FormatFloat(float64(hz)/1e6, 'f', -1, 64) + " MHz"
	case hz >= 1000:
		return strconv.FormatFloat(float64(hz)/1e3, 'f', -1, 64) + " kHz"
	}
	return strconv.FormatUint(uint64(hz), 10) + " Hz"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
