package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/inbox/internal/rpc"
	"github.com/matheus3301/inbox/internal/tui/keys"
	"github.com/matheus3301/inbox/internal/tui/model"
	"github.com/matheus3301/inbox/internal/tui/ui"
	"github.com/matheus3301/inbox/internal/tui/views"
	"github.com/rivo/tview"
	grpcstatus "google.golang.org/grpc/status"
)

// Page names.
const (
	pageConversations = "conversations"
	pageThread        = "thread"
	pageDetails       = "details"
	pageSearch        = "search"
	pageHelp          = "help"
	pageLogin         = "login"
)

// menuRows fits the key hints beside the session panel in the header.
const menuRows = 7

// watchPrefixes are the daemon event kinds the UI reacts to.
var watchPrefixes = []string{"chat.", "session.", "poll.state"}

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	client   *rpc.Client
	vm       *model.ViewModel
	registry *keys.Registry
	profile  string

	root     *tview.Flex
	pages    *ui.Pages
	crumbs   *ui.Crumbs
	menu     *ui.Menu
	info     *ui.SessionInfo
	flash    *ui.FlashModel
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	convList *views.ConversationList
	thread   *views.MessageThread
	details  *views.ConversationInfo
	search   *views.SearchView
	help     *views.HelpView
	login    *views.LoginView

	components  map[string]ui.Component
	searchLocal bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application for the daemon behind c. email
// pre-fills the sign-in form.
func NewApp(c *rpc.Client, profile, email string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		client:   c,
		vm:       model.NewViewModel(c),
		registry: keys.NewRegistry(),
		profile:  profile,
		pages:    ui.NewPages(),
		crumbs:   ui.NewCrumbs(theme),
		menu:     ui.NewMenu(theme, menuRows),
		info:     ui.NewSessionInfo(theme),
		flash:    ui.NewFlashModel(),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		convList: views.NewConversationList(theme),
		thread:   views.NewMessageThread(theme),
		details:  views.NewConversationInfo(theme),
		search:   views.NewSearchView(theme),
		help:     views.NewHelpView(theme),
		login:    views.NewLoginView(theme, email),
		ctx:      ctx,
		cancel:   cancel,
	}

	a.setupLayout()
	a.setupBindings()
	a.setupCallbacks()
	a.pages.Reset(pageConversations)
	a.render()

	return a
}

func (a *App) setupLayout() {
	a.components = map[string]ui.Component{
		pageConversations: a.convList,
		pageThread:        a.thread,
		pageDetails:       a.details,
		pageSearch:        a.search,
		pageHelp:          a.help,
		pageLogin:         a.login,
	}
	a.pages.AddPage(pageConversations, a.convList, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageLogin, a.login, true, false)

	a.pages.SetOnChange(func([]string) { a.updateChrome() })

	header := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.info, 0, 1, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 18, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 8, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)
	a.root.SetBackgroundColor(a.theme.BgColor)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("command", &keys.Action{
		Rune: ':', Key: tcell.KeyRune,
		Description: "Command", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "Help", Visible: true,
		Handler: func() { a.push(pageHelp) },
	})
	a.registry.AddGlobal("back", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "Back/Quit", Visible: true,
		Handler: a.back,
	})

	a.registry.AddView(pageConversations, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "Details", Visible: true,
		Handler: func() { a.showDetails(a.convList.SelectedConversation()) },
	})
	a.registry.AddView(pageConversations, "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "Refresh", Visible: true,
		Handler: a.refresh,
	})
	a.registry.AddView(pageConversations, "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "Filter", Visible: true,
		Handler: func() { a.activatePrompt(ui.PromptFilter) },
	})
	a.registry.AddView(pageConversations, "clear", &keys.Action{
		Rune: '0', Key: tcell.KeyRune,
		Description: "All", Visible: true, Numeric: true,
		Handler: func() { a.convList.ClearFilter() },
	})
	for n := 1; n <= 9; n++ {
		n := n
		a.registry.AddView(pageConversations, fmt.Sprintf("jump%d", n), &keys.Action{
			Rune: rune('0' + n), Key: tcell.KeyRune,
			Description: "Jump", Visible: true, Numeric: true,
			Handler: func() {
				if id := a.convList.ConversationByIndex(n); id != "" {
					a.openConversation(id)
				}
			},
		})
	}

	a.registry.AddView(pageThread, "compose", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "Compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(pageThread, "details", &keys.Action{
		Rune: 'd', Key: tcell.KeyRune,
		Description: "Details", Visible: true,
		Handler: func() { a.showDetails(a.thread.ConversationID()) },
	})
	a.registry.AddView(pageThread, "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "Reload", Visible: true,
		Handler: a.reload,
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.ConversationByIndex(row); id != "" {
			a.openConversation(id)
		}
	})

	a.thread.SetOnSend(a.send)

	a.search.SetOnQuery(a.runSearch)
	a.search.Results().SetSelectedFunc(func(row, col int) {
		if convID, _ := a.search.SelectedResult(); convID != "" {
			a.openConversation(convID)
		}
	})

	a.login.SetOnSubmit(a.signIn)

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			a.convList.SetFilter(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCommands(commandNames())
}

// updateChrome redraws the crumbs and key hints for the page stack.
func (a *App) updateChrome() {
	stack := a.pages.Stack()
	trail := make([]ui.Crumb, 0, len(stack))
	for _, p := range stack {
		cr := ui.Crumb{Label: a.components[p].Name()}
		if p == pageConversations {
			cr.Count = a.vm.Snapshot().UnreadCount
		}
		trail = append(trail, cr)
	}
	a.crumbs.Update(trail)

	page := a.pages.Current()
	if page == "" {
		return
	}
	var hints []ui.MenuHint
	if page != pageLogin {
		hints = a.registry.Hints(page)
	}
	a.menu.Update(append(hints, a.components[page].Hints()...))
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}

	page := a.pages.Current()
	focused := a.app.GetFocus()

	// Text widgets get every key except the ones that leave them.
	switch focused.(type) {
	case *tview.InputField, *tview.Button:
		switch {
		case focused == a.thread.Composer() && event.Key() == tcell.KeyEscape:
			a.app.SetFocus(a.thread.Messages())
			return nil
		case focused == a.search.Input() && event.Key() == tcell.KeyEscape:
			a.back()
			return nil
		case focused == a.search.Input() && event.Key() == tcell.KeyTab:
			a.app.SetFocus(a.search.Results())
			return nil
		}
		return event
	}

	if event.Key() == tcell.KeyEscape {
		a.back()
		return nil
	}
	if page == pageLogin {
		return event
	}
	if a.registry.HandleEvent(page, event) {
		return nil
	}
	return event
}

// push shows name on top of the page stack.
func (a *App) push(name string) {
	a.pages.Show(name)
	a.focusPage(name)
}

// back pops the current page; on the last page it quits.
func (a *App) back() {
	switch {
	case a.pages.Current() == pageLogin:
	case a.pages.Depth() > 1:
		a.pages.Pop()
		a.focusPage(a.pages.Current())
	default:
		a.Stop()
	}
}

func (a *App) focusPage(name string) {
	switch name {
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Input())
	default:
		if p, ok := a.components[name].(tview.Primitive); ok {
			a.app.SetFocus(p)
		}
	}
}

func (a *App) activatePrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage(a.pages.Current())
}

func (a *App) runCommand(cmd Command) {
	cmd, err := cmd.Resolve()
	if err != nil {
		a.flash.Warn(err.Error())
		return
	}
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.push(pageHelp)
	case "search":
		a.showSearch(cmd.Args, false)
	case "local":
		a.showSearch(cmd.Args, true)
	case "chat":
		id := a.vm.FindConversation(cmd.Args)
		if id == "" {
			a.flash.Warn(fmt.Sprintf("no conversation matches %q", cmd.Args))
			return
		}
		a.openConversation(id)
	case "open":
		a.openWith(cmd.Args)
	case "refresh":
		a.refresh()
	case "dismiss":
		a.async("dismiss", a.vm.DismissError)
	case "logout":
		a.async("logout", a.vm.Logout)
	}
}

// async runs fn off the UI goroutine and redraws when it returns.
func (a *App) async(op string, fn func(context.Context) error) {
	go func() {
		err := fn(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.fail(op, err)
			}
			a.render()
		})
	}()
}

func (a *App) fail(op string, err error) {
	a.flash.Err(fmt.Errorf("%s: %s", op, grpcstatus.Convert(err).Message()))
}

func (a *App) refresh() {
	a.async("refresh", a.vm.Refresh)
}

func (a *App) reload() {
	a.async("reload", a.vm.Reload)
}

func (a *App) openConversation(id string) {
	title := id
	if c := a.vm.Conversation(id); c != nil {
		title = model.ConversationTitle(c, a.vm.SelfID())
	}
	go func() {
		err := a.vm.Open(a.ctx, id)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.fail("open", err)
				return
			}
			a.thread.SetConversation(id, title)
			a.render()
			a.push(pageThread)
		})
	}()
}

func (a *App) openWith(userID string) {
	go func() {
		err := a.vm.OpenWith(a.ctx, userID)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.fail("open", err)
				return
			}
			snap := a.vm.Snapshot()
			title := snap.CurrentID
			if snap.CurrentConversation != nil {
				title = model.ConversationTitle(snap.CurrentConversation, a.vm.SelfID())
			}
			a.thread.SetConversation(snap.CurrentID, title)
			a.render()
			a.push(pageThread)
		})
	}()
}

func (a *App) send(text string) {
	go func() {
		if err := a.vm.Send(a.ctx, text); err != nil {
			a.app.QueueUpdateDraw(func() { a.fail("send", err) })
		}
	}()
}

func (a *App) showDetails(id string) {
	c := a.vm.Conversation(id)
	if c == nil {
		return
	}
	a.details.Update(c, a.vm.SelfID())
	a.push(pageDetails)
}

func (a *App) showSearch(query string, local bool) {
	a.searchLocal = local
	a.push(pageSearch)
	a.search.SetQuery(query)
	if query != "" {
		a.runSearch(query)
	}
}

func (a *App) runSearch(query string) {
	local := a.searchLocal
	go func() {
		var (
			rows   []model.SearchRow
			err    error
			source = "server"
		)
		if local {
			source = "mirror"
			rows, err = a.vm.SearchLocal(a.ctx, query)
		} else {
			rows, err = a.vm.Search(a.ctx, query, false)
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.fail("search", err)
				return
			}
			a.search.Update(rows, source)
			a.app.SetFocus(a.search.Results())
		})
	}()
}

func (a *App) signIn(email, password string) {
	go func() {
		err := a.vm.Login(a.ctx, email, password)
		a.app.QueueUpdateDraw(func() {
			a.login.ClearPassword()
			if err != nil {
				a.fail("sign in", err)
				return
			}
			a.flash.Info("signed in as " + email)
			a.render()
		})
	}()
}

// render copies view model state into the widgets. It runs on the UI goroutine.
func (a *App) render() {
	snap := a.vm.Snapshot()
	self := a.vm.SelfID()

	a.convList.Update(snap.Conversations, self)
	if id := a.thread.ConversationID(); id != "" && id == snap.CurrentID {
		a.thread.Update(snap.Messages, self)
	}

	data := &ui.SessionData{
		Profile:       a.profile,
		Status:        "-",
		Conversations: len(snap.Conversations),
		Unread:        snap.UnreadCount,
	}
	if st := a.vm.Status(); st != nil {
		data.Status = st.Status
		data.Polling = st.Polling
		data.Uptime = time.Duration(st.UptimeMs) * time.Millisecond
		if st.Identity != nil {
			data.Identity = st.Identity.DisplayName()
		}
	}
	a.info.Update(data)

	a.flash.SetSticky(snap.Error)

	switch current := a.pages.Current(); {
	case a.vm.AuthRequired() && current != pageLogin:
		a.pages.Reset(pageLogin)
		a.focusPage(pageLogin)
	case !a.vm.AuthRequired() && current == pageLogin:
		a.pages.Reset(pageConversations)
		a.focusPage(pageConversations)
	default:
		a.updateChrome()
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		if err := a.vm.LoadStatus(a.ctx); err != nil {
			a.app.QueueUpdateDraw(func() { a.fail("status", err) })
			return
		}
		err := a.vm.LoadSnapshot(a.ctx)
		if err == nil && !a.vm.AuthRequired() {
			err = a.vm.Refresh(a.ctx)
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.fail("load", err)
			}
			a.render()
		})
	}()
	go a.watch()
	go a.refreshLoop()
	go a.flashLoop()

	return a.app.Run()
}

// watch follows daemon events, reconnecting with backoff when the stream breaks.
func (a *App) watch() {
	backoff := time.Second
	for a.ctx.Err() == nil {
		stream, err := a.client.Watch(a.ctx, watchPrefixes...)
		if err == nil {
			a.vm.Invalidate()
			for {
				evt, err := stream.Recv()
				if err != nil {
					break
				}
				backoff = time.Second
				a.vm.HandleEvent(evt)
			}
		}
		if a.ctx.Err() != nil {
			return
		}
		a.flash.Warn("lost connection to daemon, retrying")
		select {
		case <-time.After(backoff):
		case <-a.ctx.Done():
			return
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (a *App) refreshLoop() {
	for {
		select {
		case <-a.vm.RefreshCh():
			err := a.vm.Sync(a.ctx)
			a.app.QueueUpdateDraw(func() {
				if err != nil && a.ctx.Err() == nil {
					a.fail("sync", err)
				}
				a.render()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) flashLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.flash.Watch():
		case <-ticker.C:
		case <-a.ctx.Done():
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.flashBar.Update(a.flash.Current())
		})
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
