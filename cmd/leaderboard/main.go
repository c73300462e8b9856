package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"assessment-system/internal/assessment"
	"assessment-system/internal/config"
	"assessment-system/internal/leaderboard"
	"assessment-system/internal/models"
	"assessment-system/internal/session"
	"assessment-system/pkg/database"
)

func main() {
	kind := flag.String("kind", string(session.KindMockTest), "assessment kind: quiz or mock_test")
	subject := flag.String("subject", "", "restrict the board to one subject")
	limit := flag.Int("limit", 20, "number of rows to print, 0 for all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewPostgresDB(&cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	boards := leaderboard.NewService(assessment.NewRepository(db), nil, 0)
	scope := leaderboard.Scope{Kind: session.Kind(*kind), Subject: *subject}
	entries, err := boards.Board(context.Background(), scope)
	if err != nil {
		color.Red("Error loading leaderboard: %v", err)
		os.Exit(1)
	}

	title := fmt.Sprintf("\nLeaderboard: %s", scope.Kind)
	if scope.Subject != "" {
		title += " / " + scope.Subject
	}
	color.Yellow(title)
	renderBoard(os.Stdout, entries, *limit)
}

// renderBoard prints the ranked entries. The podium rows are highlighted.
func renderBoard(w io.Writer, entries []models.LeaderboardEntry, limit int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No results yet.")
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	podium := color.New(color.FgGreen, color.Bold).SprintFunc()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Rank", "Name", "Total", "Tests", "Average"})
	for i, e := range entries {
		rank := strconv.Itoa(i + 1)
		name := e.Name
		if i < 3 {
			rank, name = podium(rank), podium(name)
		}
		table.Append([]string{
			rank,
			name,
			strconv.Itoa(e.TotalScore),
			strconv.Itoa(e.TestsCompleted),
			strconv.Itoa(e.AverageScore),
		})
	}
	table.Render()
}
