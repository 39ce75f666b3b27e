package displayer

import (
	"context"
	"fmt"
	"sync/atomic"

	"vdt/internal/diagnostic"
	"vdt/internal/models"
	"vdt/pkg/log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const (
	CheckButtonLabel = "Check DTC Codes"
	checkingLabel    = "Checking..."

	WindowTitle = "Vehicle Diagnostic Tool"
	DialogTitle = "DTC Codes"

	mainPage   = "main"
	dialogPage = "dialog"
)

// Checker runs one diagnostic check.
type Checker interface {
	Check(ctx context.Context) diagnostic.Result
}

// Displayer handles the TUI: a single window with one check button and a
// modal dialog per result.
type Displayer struct {
	app     *tview.Application
	pages   *tview.Pages
	checker Checker
	ctx     context.Context
	cancel  context.CancelFunc

	// checking is set while a check runs; presses in that window are ignored
	checking atomic.Bool
	// queue runs f on the UI goroutine
	queue func(f func())

	// UI elements cached for updates
	statusText  *tview.TextView
	helpText    *tview.TextView
	checkButton *tview.Button
	lastDialog  string
}

func New(checker Checker) *Displayer {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Displayer{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		checker: checker,
		ctx:     ctx,
		cancel:  cancel,
	}
	d.queue = func(f func()) {
		d.app.QueueUpdateDraw(f)
	}
	d.build()
	return d
}

func (d *Displayer) Run() error {
	d.app.SetRoot(d.pages, true).SetFocus(d.checkButton)
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if d.pages.HasPage(dialogPage) {
			return event
		}
		switch event.Rune() {
		case 'q', 'Q':
			d.Shutdown()
			return nil
		}
		return event
	})

	if err := d.app.Run(); err != nil {
		return err
	}
	return nil
}

func (d *Displayer) Shutdown() {
	d.cancel()
	d.app.Stop()
}

func (d *Displayer) build() {
	title := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText(WindowTitle)
	banner := tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText(Banner)
	banner.SetTextColor(tcell.ColorDarkCyan)
	d.statusText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetDynamicColors(true)
	d.helpText = tview.NewTextView().SetTextAlign(tview.AlignCenter).SetText("[Enter - Check] [q - Quit]")

	d.checkButton = tview.NewButton(CheckButtonLabel).SetSelectedFunc(d.onCheck)

	// center the button horizontally
	buttonRow := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(d.checkButton, len(CheckButtonLabel)+4, 0, true).
		AddItem(nil, 0, 1, false)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow)
	mainFlex.AddItem(title, 1, 0, false)
	mainFlex.AddItem(d.statusText, 1, 0, false)
	mainFlex.AddItem(banner, len(bannerLines)+1, 0, false)
	mainFlex.AddItem(nil, 0, 1, false)
	mainFlex.AddItem(buttonRow, 1, 0, true)
	mainFlex.AddItem(nil, 0, 1, false)
	mainFlex.AddItem(d.helpText, 1, 0, false)
	mainFlex.SetBorder(true).SetTitle(" " + WindowTitle + " ")

	d.pages.AddPage(mainPage, mainFlex, true, true)
	d.setStatus("[green]idle[white]")
}

// onCheck starts a check on a background goroutine and marshals the result
// back to the UI goroutine.
func (d *Displayer) onCheck() {
	if !d.checking.CompareAndSwap(false, true) {
		log.Debug("Check already running, ignoring press")
		return
	}
	d.checkButton.SetLabel(checkingLabel)
	d.setStatus("[yellow]checking...[white]")

	go func() {
		res := d.checker.Check(d.ctx)
		d.queue(func() {
			d.checkButton.SetLabel(CheckButtonLabel)
			d.checking.Store(false)
			d.showResult(res)
		})
	}()
}

func (d *Displayer) showResult(res diagnostic.Result) {
	switch res.Outcome {
	case models.OutcomeNotConnected:
		d.setStatus("[red]not connected[white]")
	case models.OutcomeQueryFailed:
		d.setStatus("[red]could not read codes[white]")
	default:
		d.setStatus(fmt.Sprintf("[green]last check: %d code(s)[white]", len(res.Entries)))
	}
	log.Debug("Showing result", zap.String("check_id", res.ID), zap.String("outcome", string(res.Outcome)))
	d.showDialog(DialogText(res))
}

func (d *Displayer) showDialog(text string) {
	d.lastDialog = text
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			d.pages.RemovePage(dialogPage)
			d.app.SetFocus(d.checkButton)
		})
	modal.SetTitle(" " + DialogTitle + " ")

	d.pages.AddPage(dialogPage, modal, false, true)
	d.app.SetFocus(modal)
}

func (d *Displayer) setStatus(s string) {
	d.statusText.SetText(fmt.Sprintf("Status: %s", s))
}
