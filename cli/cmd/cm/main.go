package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cm/cli/internal/commit"
	"cm/cli/internal/commitmsg"
	"cm/cli/internal/config"
	"cm/cli/internal/diff"
	"cm/cli/internal/erruser"
	"cm/cli/internal/git"
	"cm/cli/internal/llm"
	"cm/cli/internal/logging"
	"cm/cli/internal/ollama"
	"cm/cli/internal/prompt"
	"cm/cli/internal/providers"
	"cm/cli/internal/render"
	"cm/cli/internal/tui"
	"cm/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// Output writers and terminal hooks. Tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	isTTY           = tui.IsTTY
	termWidth       = tui.Width
	pickOption      = tui.Pick
	copyToClipboard = clipboard.WriteAll
	startSpinner    = func(text string, cancel func()) func() {
		s := tui.NewSpinner(stderr, cancel)
		s.Start(text)
		return func() { s.Stop() }
	}
)

// _minChoose and _defaultChoose bound -c/--choose.
const (
	_minChoose     = 2
	_defaultChoose = "2"
)

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// cobra reads os.Args when args is nil.
	if args == nil {
		args = []string{}
	}
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		render.Error(stderr, err, erruser.HintOf(err))
		if logging.Verbose() {
			render.RawResponse(stderr, err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cm",
		Short: "Generate commit messages from staged changes",
		Long: "cm reads the staged diff, asks a local Ollama model (or Claude when a key is set)\n" +
			"for a commit message and copies the result to the clipboard.",
		Example: "  cm\n  cm -c3 --hint \"fixing the login bug\"\n  cm -t fix -j PROJ-123",
		Version: version.String(),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runGenerate,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logging.Setup(stderr, verbose)
		},
	}
	f := rootCmd.Flags()
	f.IntP("choose", "c", 0, "Show N options (2-4, default 2) and pick one")
	f.Lookup("choose").NoOptDefVal = _defaultChoose
	f.String("hint", "", `Add context: --hint "fixing the login bug"`)
	f.StringP("type", "t", "", "Force commit type ("+strings.Join(commit.TypeNames(), ", ")+")")
	f.StringP("jira", "j", "", "Add a ticket reference: -j PROJ-123")
	f.String("ticket-prefix", "", "Ticket reference prefix (default Refs)")
	f.StringP("style", "s", "", "Message style: conventional, simple or detailed")
	f.Bool("no-body", false, "Subject line only, no bullet points")
	f.StringP("provider", "p", "", "LLM provider: auto, ollama or claude")
	addModelFlag(f)
	f.Bool("no-copy", false, "Print the message only, do not copy to clipboard")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug logs and prompt statistics")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(newWarmupCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDoctorCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func addModelFlag(f *pflag.FlagSet) {
	f.StringP("model", "m", "", "Model name (default depends on the provider)")
}

// optionCount returns 1 unless --choose was given, then 2..4. "-c 3" arrives
// as a bare argument because the flag value is optional.
func optionCount(cmd *cobra.Command, args []string) (int, error) {
	unexpected := func() error {
		return erruser.New(fmt.Sprintf("Unexpected argument %q; use --hint for extra context.", args[0]), nil)
	}
	if !cmd.Flags().Changed("choose") {
		if len(args) > 0 {
			return 0, unexpected()
		}
		return 1, nil
	}
	n, _ := cmd.Flags().GetInt("choose")
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, unexpected()
		}
		n = v
	}
	if n < _minChoose {
		n = _minChoose
	}
	return commitmsg.ClampOptions(n), nil
}

// overridesFromFlags returns the flag layer for config.Load; only flags the
// user set are included.
func overridesFromFlags(cmd *cobra.Command) *config.Layer {
	o := &config.Layer{Source: "flag"}
	str := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}
	o.Provider = str("provider")
	o.Model = str("model")
	o.Style = str("style")
	o.TicketPrefix = str("ticket-prefix")
	if noBody, _ := cmd.Flags().GetBool("no-body"); noBody {
		include := false
		o.IncludeBody = &include
	}
	return o
}

func loadConfig(cmd *cobra.Command, overrides *config.Layer) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", erruser.New("Could not determine current directory.", err)
	}
	repoRoot := ""
	if r, e := git.RepoRoot(cwd); e == nil {
		repoRoot = r
	}
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{RepoRoot: repoRoot, Overrides: overrides})
	if err != nil {
		return nil, "", err
	}
	return cfg, repoRoot, nil
}

func providerSettings(cfg *config.Config) providers.Settings {
	return providers.Settings{Model: cfg.Model, OllamaHost: cfg.OllamaHost, APIKey: cfg.APIKey}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	n, err := optionCount(cmd, args)
	if err != nil {
		return err
	}
	var forced commit.Type
	if s, _ := cmd.Flags().GetString("type"); s != "" {
		forced, err = commit.ParseType(s)
		if err != nil {
			return erruser.New("Invalid type; use "+strings.Join(commit.TypeNames(), ", ")+".", err)
		}
	}
	hint, _ := cmd.Flags().GetString("hint")
	ticket, _ := cmd.Flags().GetString("jira")
	noCopy, _ := cmd.Flags().GetBool("no-copy")
	verbose, _ := cmd.Flags().GetBool("verbose")
	ctx := cmd.Context()
	start := time.Now()

	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}
	repoRoot, err := git.RepoRoot(cwd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ctx, config.LoadOptions{RepoRoot: repoRoot, Overrides: overridesFromFlags(cmd)})
	if err != nil {
		return err
	}

	changes, err := diff.Staged(ctx, repoRoot)
	if err != nil {
		return err
	}
	processed, err := diff.Process(changes, cfg.Budget, &diff.Options{ExcludePatterns: cfg.Exclude})
	if err != nil {
		return stagedError(err)
	}

	interactive := isTTY()
	if !interactive && n > 1 {
		log.Debug().Int("requested", n).Msg("not a terminal; generating one option")
		n = 1
	}

	p, err := providers.Select(ctx, cfg.Provider, providerSettings(cfg))
	if err != nil {
		return erruser.New("Could not select an LLM provider.", err)
	}
	model := providers.Model(p)
	if interactive {
		render.Info(stderr, "Analyzing %d files using %s (%s)...", processed.TotalFiles, p.Name(), model)
	}
	if p.Name() == ollama.ProviderName {
		if err := warmIfCold(ctx, ollama.NewClient(cfg.OllamaHost, nil), model, cfg.Timeout, interactive); err != nil {
			render.Info(stderr, "Cancelled.")
			return errExit(130)
		}
	}

	req := prompt.Request{
		Context:          processed,
		Hint:             hint,
		Type:             forced,
		Ticket:           ticket,
		TicketPrefix:     cfg.TicketPrefix,
		Style:            cfg.Style,
		IncludeBody:      cfg.IncludeBody,
		MaxSubjectLength: cfg.MaxSubjectLength,
		OptionCount:      n,
	}
	opts := commitmsg.Options{
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		Concurrency: cfg.Concurrency,
	}
	results, err := suggest(ctx, p, req, opts, interactive)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			render.Info(stderr, "Cancelled.")
			return errExit(130)
		}
		return erruser.New("Could not generate a commit message.", err)
	}
	if verbose {
		render.Stats(stderr, processed, results, time.Since(start))
	}

	if !interactive {
		render.Plain(stdout, results)
		return nil
	}
	chosen := results[0]
	if len(results) > 1 {
		idx, err := pickOption(results, termWidth())
		if errors.Is(err, tui.ErrCanceled) {
			render.Info(stderr, "Cancelled.")
			return nil
		}
		if err != nil {
			return err
		}
		chosen = results[idx]
	}
	render.Options(stdout, []llm.Result{chosen}, termWidth())
	if noCopy {
		return nil
	}
	if err := copyToClipboard(chosen.Message.String()); err != nil {
		render.Warning(stderr, "Could not copy to clipboard: %v", err)
		return nil
	}
	render.Success(stderr, "Copied to clipboard")
	return nil
}

func stagedError(err error) error {
	switch {
	case errors.Is(err, diff.ErrNoStagedChanges):
		return erruser.WithHint("No staged changes.", "Stage files first: git add <files>", nil)
	case errors.Is(err, diff.ErrAllFiltered):
		return erruser.WithHint("Every staged file is a lock file, generated file or binary.",
			"Stage source changes, or narrow exclude in "+config.FileName+".", nil)
	default:
		return err
	}
}

func suggest(ctx context.Context, p llm.Provider, req prompt.Request, opts commitmsg.Options, interactive bool) ([]llm.Result, error) {
	if !interactive {
		return commitmsg.Suggest(ctx, p, req, opts)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	text := "Generating commit message..."
	if req.OptionCount > 1 {
		text = fmt.Sprintf("Generating %d commit messages...", req.OptionCount)
	}
	stop := startSpinner(text, cancel)
	results, err := commitmsg.Suggest(ctx, p, req, opts)
	stop()
	return results, err
}

// warmIfCold loads model into Ollama's memory when /api/ps does not list it,
// so the first generation is not charged the load time. Load failures only
// warn and generation reports the real error. The returned error is non-nil
// only when the user cancelled the load.
func warmIfCold(ctx context.Context, client *ollama.Client, model string, timeout time.Duration, interactive bool) error {
	loaded, err := client.IsLoaded(ctx, model)
	if err != nil {
		log.Debug().Err(err).Msg("could not list loaded models")
		return nil
	}
	if loaded {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := func() {}
	if interactive {
		stop = startSpinner("Loading "+model+"...", cancel)
	}
	start := time.Now()
	err = client.Warmup(ctx, model, timeout)
	stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("model", model).Msg("warmup failed")
		if interactive {
			render.Warning(stderr, "Warmup failed; generation may be slow.")
		}
		return nil
	}
	log.Debug().Str("model", model).Dur("took", time.Since(start)).Msg("model loaded")
	return nil
}

func newWarmupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Load the Ollama model into memory",
		Args:  cobra.NoArgs,
		RunE:  runWarmup,
	}
	addModelFlag(cmd.Flags())
	return cmd
}

func runWarmup(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd, overridesFromFlags(cmd))
	if err != nil {
		return err
	}
	model := cfg.Model
	if model == "" {
		model = ollama.DefaultModel
	}
	client := ollama.NewClient(cfg.OllamaHost, nil)
	loaded, err := client.IsLoaded(cmd.Context(), model)
	if err != nil {
		return erruser.WithHint(fmt.Sprintf("Could not reach Ollama at %s.", client.BaseURL()),
			"Start it with: ollama serve", err)
	}
	if loaded {
		render.Success(stdout, "%s is already loaded", model)
		return nil
	}
	render.Info(stderr, "Loading %s...", model)
	start := time.Now()
	if err := client.Warmup(cmd.Context(), model, cfg.Timeout); err != nil {
		return erruser.New(fmt.Sprintf("Could not load %s.", model), err)
	}
	render.Success(stdout, "Loaded %s in %s", model, time.Since(start).Round(100*time.Millisecond))
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE:  runConfig,
	}
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.Encode(stdout); err != nil {
		return erruser.New("Could not write configuration.", err)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "# Sources")
	for _, k := range config.Keys {
		fmt.Fprintf(stdout, "# %-20s %s\n", k, cfg.Origin(k))
	}
	fmt.Fprintln(stdout, "#")
	fmt.Fprintln(stdout, "# Environment: "+strings.Join(config.EnvKeys, ", "))
	fmt.Fprintln(stdout, "# Files: ~/"+config.FileName+", <repo>/"+config.FileName)
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify environment (Git, Ollama, Claude key)",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if v, err := git.Version(ctx); err != nil {
		render.Warning(stdout, "git: not found (%v)", err)
	} else {
		render.Success(stdout, "git: %s", v)
	}
	cfg, repoRoot, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if repoRoot == "" {
		render.Warning(stdout, "repository: not inside a Git repository")
	} else {
		render.Success(stdout, "repository: %s", repoRoot)
	}

	model := cfg.Model
	if model == "" {
		model = ollama.DefaultModel
	}
	client := ollama.NewClient(cfg.OllamaHost, nil)
	check, err := client.Check(ctx, model)
	switch {
	case err != nil:
		render.Warning(stdout, "ollama: unreachable at %s (start it with: ollama serve)", client.BaseURL())
	case !check.ModelPresent:
		render.Warning(stdout, "ollama: reachable at %s, model %s missing (run: ollama pull %s)", client.BaseURL(), model, model)
	default:
		state := "not loaded"
		if loaded, err := client.IsLoaded(ctx, model); err == nil && loaded {
			state = "loaded"
		}
		render.Success(stdout, "ollama: %s at %s (%s)", model, client.BaseURL(), state)
	}

	if cfg.APIKey == "" {
		render.Warning(stdout, "claude: %s not set", "ANTHROPIC_API_KEY")
	} else {
		render.Success(stdout, "claude: API key %s", config.MaskKey(cfg.APIKey))
	}

	p, err := providers.Select(ctx, cfg.Provider, providerSettings(cfg))
	if err != nil {
		render.Error(stdout, err, erruser.HintOf(err))
		return errExit(1)
	}
	render.Success(stdout, "provider: %s (%s)", p.Name(), providers.Model(p))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, "cm "+version.String())
		},
	}
}
