package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/viant/kcore"
)

var topColumns = []string{"NAME", "PID", "PPID", "STATE", "QUEUE", "CPU", "CYCLE", "ARRIVAL", "PRIO", "RANK", "SIZE"}

// top shows a live process table until q or Esc is pressed or ctx is done
func top(ctx context.Context, srv *kcore.Service, refresh time.Duration) error {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 0).SetSelectable(true, false)
	stats := tview.NewTextView().SetDynamicColors(true)
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(stats, 1, 0, false)
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})

	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				app.Stop()
				return
			case <-ticker.C:
				app.QueueUpdateDraw(func() {
					render(srv, table, stats)
				})
			}
		}
	}()
	render(srv, table, stats)
	return app.SetRoot(layout, true).Run()
}

func render(srv *kcore.Service, table *tview.Table, stats *tview.TextView) {
	table.Clear()
	for i, name := range topColumns {
		table.SetCell(0, i, tview.NewTableCell(name).SetTextColor(tcell.ColorYellow).SetSelectable(false))
	}
	for row, info := range srv.Table().Snapshot() {
		cpu := "-"
		if info.CPU >= 0 {
			cpu = fmt.Sprint(info.CPU)
		}
		values := []string{
			info.Name,
			fmt.Sprint(info.PID),
			fmt.Sprint(info.ParentPID),
			info.State.String(),
			info.Queue.String(),
			cpu,
			fmt.Sprintf("%.1f", info.Cycle),
			fmt.Sprint(info.Arrival),
			fmt.Sprint(info.Priority),
			fmt.Sprintf("%.2f", info.Rank),
			fmt.Sprint(info.Size),
		}
		for col, value := range values {
			table.SetCell(row+1, col, tview.NewTableCell(value))
		}
	}
	counts := srv.Syscalls().Snapshot()
	stats.SetText(fmt.Sprintf("[green]ticks[white] %d  [green]syscalls[white] %d %v  [green]free frames[white] %d  (q to quit)",
		srv.Table().Ticks().Now(), counts.Total, counts.PerCPU, srv.FreeFrames()))
}
