// Package repl is the terminal front end: it reads user input, dispatches
// commands, and renders streamed answers. It is the display sink the
// session controller writes into.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"rehearse/internal/company"
	"rehearse/internal/config"
	"rehearse/internal/conversation"
	"rehearse/internal/logging"
	"rehearse/internal/registry"
	"rehearse/internal/session"
	"rehearse/internal/stats"
)

var commandSuggestions = []prompt.Suggest{
	{Text: ":help", Description: "show this text"},
	{Text: ":mode", Description: "show or switch mode (:mode answer|evaluate)"},
	{Text: ":models", Description: "list available models"},
	{Text: ":model", Description: "select a model by name or number"},
	{Text: ":questions", Description: "list the quick-question bank"},
	{Text: ":ask", Description: "send quick question n (:ask 2)"},
	{Text: ":qadd", Description: "add a question to the bank"},
	{Text: ":qedit", Description: "replace question n (:qedit 2 <text>)"},
	{Text: ":qdel", Description: "delete question n"},
	{Text: ":persona", Description: "show or replace the persona text"},
	{Text: ":company", Description: "show, replace, or clear company context"},
	{Text: ":fetch", Description: "load company context from a URL"},
	{Text: ":show", Description: "render the conversation transcript"},
	{Text: ":save", Description: "save the conversation (:save path.json)"},
	{Text: ":load", Description: "load a conversation (:load path.json)"},
	{Text: ":clear", Description: "wipe the current conversation"},
	{Text: ":stats", Description: "show practice statistics"},
	{Text: ":quit", Description: "exit the program"},
	{Text: ":exit", Description: "exit the program"},
}

type interruptTracker struct {
	mu     sync.Mutex
	last   time.Time
	window time.Duration
}

func newInterruptTracker(window time.Duration) *interruptTracker {
	return &interruptTracker{window: window}
}

func (t *interruptTracker) secondPress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		t.last = time.Time{}
		return true
	}
	t.last = now
	return false
}

type promptExit struct{}

// REPL drives the interactive loop. It implements session.Sink so streamed
// chunks land directly on the terminal.
type REPL struct {
	ctrl    *session.Controller
	store   *config.Store
	fetcher *company.Fetcher
	stats   *stats.Store // nil when the stats store failed to open
	logger  *log.Logger

	isTTY  bool
	render *glamour.TermRenderer

	historyPath string

	requestCancelMu sync.Mutex
	requestCancel   context.CancelFunc
}

// Options carries the optional REPL collaborators.
type Options struct {
	Fetcher     *company.Fetcher
	Stats       *stats.Store
	HistoryPath string
}

// New builds the terminal front end. ctrl may be nil at construction time
// when the REPL is also the controller's sink; wire it with Bind before Run.
func New(ctrl *session.Controller, store *config.Store, logger *log.Logger, opts Options) *REPL {
	var renderer *glamour.TermRenderer
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(0),
		); err == nil {
			renderer = r
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &REPL{
		ctrl:        ctrl,
		store:       store,
		fetcher:     opts.Fetcher,
		stats:       opts.Stats,
		logger:      logger,
		isTTY:       term.IsTerminal(int(os.Stdin.Fd())),
		render:      renderer,
		historyPath: opts.HistoryPath,
	}
}

// Bind attaches the session controller after construction.
func (r *REPL) Bind(ctrl *session.Controller) {
	r.ctrl = ctrl
}

// OnChunk implements session.Sink: chunks print as they arrive.
func (r *REPL) OnChunk(text string) {
	fmt.Print(text)
}

// OnError implements session.Sink.
func (r *REPL) OnError(err error) {
	fmt.Printf("\n! %v\n", err)
}

// Run starts the prompt loop and blocks until the session finishes.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.printWelcome()
	r.logger.Printf("session started (tty=%v)", r.isTTY)
	if r.isTTY {
		return r.runPrompt(ctx, cancel)
	}
	return r.runNonInteractive(ctx)
}

func (r *REPL) printWelcome() {
	cfg := r.store.Config()
	fmt.Println("Welcome to Rehearse, your interview practice partner.")
	fmt.Printf("Model: %s · Mode: %s\n", cfg.SelectedModel, r.ctrl.Mode())
	fmt.Println("Ask any interview question, or type ':help' for commands. Double Ctrl+C exits.")
}

func (r *REPL) runPrompt(ctx context.Context, cancel context.CancelFunc) (err error) {
	tracker := newInterruptTracker(2 * time.Second)
	history := loadInputHistory(r.historyPath)

	var restore func()
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if state, terr := term.GetState(fd); terr == nil {
			restore = func() { _ = term.Restore(fd, state) }
		}
	}
	if restore != nil {
		defer restore()
	}

	var exitRequested atomic.Bool
	defer func() {
		if rec := recover(); rec != nil {
			if _, ok := rec.(promptExit); ok {
				err = nil
				return
			}
			panic(rec)
		}
	}()

	executor := func(in string) {
		if exitRequested.Load() || ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(in)
		if line == "" {
			return
		}
		history.Add(line)
		if exit := r.handleLine(ctx, line); exit {
			exitRequested.Store(true)
			cancel()
			panic(promptExit{})
		}
	}

	p := prompt.New(
		executor,
		r.completer(),
		prompt.OptionHistory(history.Entries()),
		prompt.OptionTitle("Rehearse"),
		prompt.OptionLivePrefix(func() (string, bool) {
			return fmt.Sprintf("[%s] > ", r.ctrl.Mode()), true
		}),
		prompt.OptionAddKeyBind(
			prompt.KeyBind{
				Key: prompt.ControlC,
				Fn: func(buf *prompt.Buffer) {
					if r.cancelInFlightRequest() {
						fmt.Println("\n(Current request cancelled.)")
						return
					}
					if tracker.secondPress() {
						fmt.Println("\nReceived second Ctrl+C, exiting.")
						exitRequested.Store(true)
						cancel()
						panic(promptExit{})
					}
					fmt.Println("\n(Press Ctrl+C again within 2s to exit)")
				},
			},
			prompt.KeyBind{
				Key: prompt.Escape,
				Fn: func(buf *prompt.Buffer) {
					if r.cancelInFlightRequest() {
						fmt.Println("\n(Request cancelled.)")
					}
				},
			},
		),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			if exitRequested.Load() {
				return true
			}
			select {
			case <-ctx.Done():
				return true
			default:
				return false
			}
		}),
	)

	p.Run()
	return nil
}

func (r *REPL) completer() func(prompt.Document) []prompt.Suggest {
	return func(doc prompt.Document) []prompt.Suggest {
		before := strings.TrimLeft(doc.TextBeforeCursor(), " \t")
		if strings.HasPrefix(before, ":ask ") {
			return r.questionSuggestions()
		}
		if !strings.HasPrefix(before, ":") {
			return nil
		}
		return prompt.FilterHasPrefix(commandSuggestions, doc.GetWordBeforeCursor(), true)
	}
}

func (r *REPL) questionSuggestions() []prompt.Suggest {
	questions := r.store.Config().Questions
	out := make([]prompt.Suggest, 0, len(questions))
	for i, q := range questions {
		out = append(out, prompt.Suggest{Text: strconv.Itoa(i + 1), Description: q})
	}
	return out
}

func (r *REPL) runNonInteractive(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		fmt.Printf("[%s] > ", r.ctrl.Mode())
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if exit := r.handleLine(ctx, line); exit {
			return nil
		}
	}
}

// handleLine dispatches one input line. Returns true to exit the loop.
func (r *REPL) handleLine(ctx context.Context, line string) bool {
	if !strings.HasPrefix(line, ":") {
		r.send(ctx, line)
		return false
	}

	cmd, rest := line, ""
	if idx := strings.IndexAny(line, " \t"); idx > 0 {
		cmd, rest = line[:idx], strings.TrimSpace(line[idx+1:])
	}

	switch cmd {
	case ":quit", ":exit":
		return true
	case ":help":
		r.printHelp()
	case ":mode":
		r.handleMode(rest)
	case ":models":
		r.printModels()
	case ":model":
		r.handleModel(rest)
	case ":questions":
		r.printQuestions()
	case ":ask":
		r.handleAsk(ctx, rest)
	case ":qadd":
		r.handleQuestionAdd(rest)
	case ":qedit":
		r.handleQuestionEdit(rest)
	case ":qdel":
		r.handleQuestionDelete(rest)
	case ":persona":
		r.handlePersona(rest)
	case ":company":
		r.handleCompany(rest)
	case ":fetch":
		r.handleFetch(ctx, rest)
	case ":show":
		r.printTranscript()
	case ":save":
		r.handleSave(rest)
	case ":load":
		r.handleLoad(rest)
	case ":clear":
		r.ctrl.Conversation().Clear()
		fmt.Println("Conversation cleared.")
	case ":stats":
		r.printStats(ctx)
	default:
		fmt.Printf("Unknown command %s (try :help)\n", cmd)
	}
	return false
}

// send runs one request inline, keeping the cancel func available for the
// Esc/Ctrl+C keybinds.
func (r *REPL) send(ctx context.Context, text string) {
	reqCtx, cancel := context.WithCancel(ctx)
	r.setRequestCancel(cancel)
	defer func() {
		r.setRequestCancel(nil)
		cancel()
	}()

	cfg := r.store.Config()
	fmt.Printf("(%s · %s)\n", cfg.SelectedModel, r.ctrl.Mode())
	err := r.ctrl.Send(reqCtx, text)
	switch {
	case err == nil:
		fmt.Println()
	case errors.Is(err, session.ErrBusy):
		// Busy rejections bypass the sink; everything else already
		// rendered through OnError.
		fmt.Println("A request is already in flight; wait for it to finish.")
	}
}

func (r *REPL) setRequestCancel(cancel context.CancelFunc) {
	r.requestCancelMu.Lock()
	defer r.requestCancelMu.Unlock()
	r.requestCancel = cancel
}

func (r *REPL) cancelInFlightRequest() bool {
	r.requestCancelMu.Lock()
	defer r.requestCancelMu.Unlock()
	if r.requestCancel == nil {
		return false
	}
	r.requestCancel()
	r.requestCancel = nil
	return true
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	for _, s := range commandSuggestions {
		fmt.Printf("  %-11s %s\n", s.Text, s.Description)
	}
	fmt.Println("Anything else is sent as an interview question (answer mode) or your answer to critique (evaluate mode).")
}

func (r *REPL) handleMode(rest string) {
	switch strings.ToLower(rest) {
	case "":
		fmt.Printf("Mode: %s\n", r.ctrl.Mode())
	case "answer":
		r.ctrl.SetMode(session.ModeAnswer)
		fmt.Println("Answer mode: questions are answered as the persona.")
	case "evaluate":
		r.ctrl.SetMode(session.ModeEvaluate)
		fmt.Println("Evaluate mode: your next message is critiqued against the last question.")
	default:
		fmt.Println("Usage: :mode [answer|evaluate]")
	}
}

func (r *REPL) printModels() {
	selected := r.store.Config().SelectedModel
	for i, m := range registry.List() {
		marker := " "
		if m.DisplayName == selected {
			marker = "*"
		}
		fmt.Printf("%s %d) %s\n", marker, i+1, m.DisplayName)
	}
}

func (r *REPL) handleModel(rest string) {
	if rest == "" {
		fmt.Printf("Model: %s\n", r.store.Config().SelectedModel)
		return
	}
	name := rest
	if n, err := strconv.Atoi(rest); err == nil {
		models := registry.List()
		if n < 1 || n > len(models) {
			fmt.Printf("Model number out of range (1-%d).\n", len(models))
			return
		}
		name = models[n-1].DisplayName
	}
	if _, err := registry.Resolve(name); err != nil {
		fmt.Printf("%v. Use :models to list options.\n", err)
		return
	}
	if err := r.store.SetSelectedModel(name); err != nil {
		fmt.Printf("Could not save selection: %v\n", err)
		return
	}
	fmt.Printf("Model is now %s.\n", name)
}

func (r *REPL) printQuestions() {
	questions := r.store.Config().Questions
	if len(questions) == 0 {
		fmt.Println("No questions in the bank. Add one with :qadd.")
		return
	}
	for i, q := range questions {
		fmt.Printf("%d) %s\n", i+1, q)
	}
}

func (r *REPL) handleAsk(ctx context.Context, rest string) {
	questions := r.store.Config().Questions
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 || n > len(questions) {
		fmt.Printf("Usage: :ask <1-%d>\n", len(questions))
		return
	}
	question := questions[n-1]
	fmt.Printf("> %s\n", question)
	r.send(ctx, question)
}

func (r *REPL) handleQuestionAdd(rest string) {
	if rest == "" {
		fmt.Println("Usage: :qadd <question text>")
		return
	}
	if err := r.store.AddQuestion(rest); err != nil {
		fmt.Printf("Could not save question: %v\n", err)
		return
	}
	fmt.Printf("Added question %d.\n", len(r.store.Config().Questions))
}

func (r *REPL) handleQuestionEdit(rest string) {
	idx := strings.IndexAny(rest, " \t")
	if idx <= 0 {
		fmt.Println("Usage: :qedit <n> <new text>")
		return
	}
	n, err := strconv.Atoi(rest[:idx])
	if err != nil {
		fmt.Println("Usage: :qedit <n> <new text>")
		return
	}
	if err := r.store.EditQuestion(n-1, strings.TrimSpace(rest[idx+1:])); err != nil {
		fmt.Printf("%v\n", err)
		return
	}
	fmt.Printf("Question %d updated.\n", n)
}

func (r *REPL) handleQuestionDelete(rest string) {
	n, err := strconv.Atoi(rest)
	if err != nil {
		fmt.Println("Usage: :qdel <n>")
		return
	}
	if err := r.store.DeleteQuestion(n - 1); err != nil {
		fmt.Printf("%v\n", err)
		return
	}
	fmt.Printf("Question %d deleted.\n", n)
}

func (r *REPL) handlePersona(rest string) {
	if rest == "" {
		fmt.Println(r.store.Config().Persona)
		return
	}
	if err := r.store.SetPersona(rest); err != nil {
		fmt.Printf("Could not save persona: %v\n", err)
		return
	}
	fmt.Println("Persona updated.")
}

func (r *REPL) handleCompany(rest string) {
	switch rest {
	case "":
		ctxText := r.store.Config().CompanyContext
		if ctxText == "" {
			fmt.Println("No company context set. Use :company <text> or :fetch <url>.")
			return
		}
		fmt.Println(ctxText)
	case "clear":
		if err := r.store.SetCompanyContext(""); err != nil {
			fmt.Printf("Could not clear company context: %v\n", err)
			return
		}
		fmt.Println("Company context cleared.")
	default:
		if err := r.store.SetCompanyContext(rest); err != nil {
			fmt.Printf("Could not save company context: %v\n", err)
			return
		}
		fmt.Println("Company context updated.")
	}
}

func (r *REPL) handleFetch(ctx context.Context, rest string) {
	if rest == "" {
		fmt.Println("Usage: :fetch <url>")
		return
	}
	if r.fetcher == nil {
		fmt.Println("Fetching is not available.")
		return
	}
	fmt.Printf("Fetching %s ...\n", rest)
	summary, err := r.fetcher.Summarize(ctx, rest)
	if err != nil {
		fmt.Printf("Fetch failed: %v\n", err)
		return
	}
	if err := r.store.SetCompanyContext(summary); err != nil {
		fmt.Printf("Could not save company context: %v\n", err)
		return
	}
	logging.UserLog("company context loaded from %s (%d chars)", rest, len(summary))
	fmt.Printf("Company context updated (%d chars). View it with :company.\n", len(summary))
}

func (r *REPL) printTranscript() {
	entries := r.ctrl.Conversation().All()
	if len(entries) == 0 {
		fmt.Println("Conversation is empty.")
		return
	}
	var b strings.Builder
	for _, e := range entries {
		speaker := "You"
		if e.Role == conversation.RoleAssistant {
			speaker = "Coach"
			if e.Err {
				speaker = "Error"
			}
		}
		fmt.Fprintf(&b, "**%s** (%s)\n\n%s\n\n---\n\n", speaker, e.Timestamp.Local().Format("15:04"), e.Text)
	}
	if r.render != nil {
		if out, err := r.render.Render(b.String()); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(b.String())
}

func (r *REPL) handleSave(rest string) {
	if rest == "" {
		fmt.Println("Usage: :save <path.json>")
		return
	}
	if err := r.ctrl.Conversation().SaveToFile(rest); err != nil {
		fmt.Printf("Save failed: %v\n", err)
		return
	}
	fmt.Printf("Saved %d entries to %s.\n", r.ctrl.Conversation().Len(), rest)
}

func (r *REPL) handleLoad(rest string) {
	if rest == "" {
		fmt.Println("Usage: :load <path.json>")
		return
	}
	loaded, err := conversation.LoadFromFile(rest)
	if err != nil {
		// Current conversation stays intact on a bad load.
		fmt.Printf("Load failed: %v\n", err)
		return
	}
	r.ctrl.Conversation().Replace(loaded)
	fmt.Printf("Loaded %d entries from %s.\n", loaded.Len(), rest)
}

func (r *REPL) printStats(ctx context.Context) {
	if r.stats == nil {
		fmt.Println("Statistics are not available.")
		return
	}
	summary, err := r.stats.Summary(ctx)
	if err != nil {
		fmt.Printf("Stats failed: %v\n", err)
		return
	}
	if len(summary) == 0 {
		fmt.Println("No practice recorded yet.")
		return
	}
	fmt.Println("Practice by model:")
	for _, m := range summary {
		fmt.Printf("  %-32s %d sends, %d failed\n", m.Model, m.Sends, m.Failed)
	}
	recent, err := r.stats.Recent(ctx, 5)
	if err != nil {
		return
	}
	fmt.Println("Recent questions:")
	for _, q := range recent {
		fmt.Printf("  [%s] %s (%s)\n", q.AskedAt.Local().Format("Jan 2 15:04"), q.Question, q.Mode)
	}
}
