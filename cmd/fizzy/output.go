package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printCard(card *model.Card) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(card.ID))
	fmt.Printf("Title:       %s\n", card.Title)
	fmt.Printf("Board:       %s\n", card.BoardID)
	fmt.Printf("Status:      %s\n", ui.RenderStatus(card.Status.String()))
	if card.AssigneeID != "" {
		fmt.Printf("Assignee:    %s\n", card.AssigneeID)
	}
	if card.Description != "" {
		fmt.Printf("Description: %s\n", card.Description)
	}
	if card.PostponedUntil != nil {
		fmt.Printf("Postponed:   until %s\n", card.PostponedUntil.Format("2006-01-02"))
	}
	if card.ClosedAt != nil {
		fmt.Printf("Closed:      %s by %s\n", card.ClosedAt.Format("2006-01-02 15:04:05"), card.ClosedBy)
	}
	if len(card.Watchers) > 0 {
		fmt.Printf("Watchers:    %d\n", len(card.Watchers))
	}
	fmt.Printf("Created:     %s by %s\n", card.CreatedAt.Format("2006-01-02 15:04:05"), card.CreatedBy)
	fmt.Printf("Activity:    %s\n", card.LastActivityAt.Format("2006-01-02 15:04:05"))

	if len(card.Comments) > 0 {
		fmt.Println()
		fmt.Printf("Comments (%d):\n", len(card.Comments))
		for _, c := range card.Comments {
			fmt.Printf("  %s %s\n", ui.RenderMuted(c.CreatedAt.Format("2006-01-02 15:04")), c.AuthorID)
			fmt.Printf("    %s\n", c.Body)
		}
	}
}

func printCardList(cards []*model.Card, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tBOARD\tTITLE\tASSIGNEE")
	for _, c := range cards {
		title := c.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID,
			ui.RenderStatus(c.Status.String()),
			c.BoardID,
			title,
			c.AssigneeID,
		)
	}
	w.Flush()
	fmt.Printf("\n%d cards (%d total)\n", len(cards), total)
}

func printEventList(events []*model.Event) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tACTOR\tDETAILS")
	for _, e := range events {
		p, _ := e.DecodeParticulars()
		details := ""
		switch {
		case p.Field != "":
			details = p.Field
			if p.OldValue != "" || p.NewValue != "" {
				details = fmt.Sprintf("%s: %s -> %s", p.Field, p.OldValue, p.NewValue)
			}
		case p.Body != "":
			details = p.Body
			if len(details) > 60 {
				details = details[:57] + "..."
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Action,
			e.ActorID,
			details,
		)
	}
	w.Flush()
}
