package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/talgya/micro-market/internal/agents"
	"github.com/talgya/micro-market/internal/ledger"
	"github.com/talgya/micro-market/internal/persistence"
)

var (
	reportDatabase string
	reportRunID    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the averaged series of an exported run",
	Long:  `Read a run written with --db back from SQLite and print its averaged money and utility per round.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := uuid.Parse(reportRunID)
		if err != nil {
			return fmt.Errorf("run id %q: %w", reportRunID, err)
		}

		db, err := persistence.Open(reportDatabase)
		if err != nil {
			return err
		}
		defer db.Close()

		last, err := db.GetMeta(persistence.LastRoundKey(runID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("run %s not found in %s", runID, reportDatabase)
		}
		if err != nil {
			return err
		}

		stats, err := db.RoundStats(runID)
		if err != nil {
			return err
		}
		money := make([]float64, len(stats))
		utility := make([]float64, len(stats))
		for i, st := range stats {
			money[i], utility[i] = st.AvgMoney, st.AvgUtility
		}

		transfers, err := db.JournalNet(runID, ledger.EntryDebit, ledger.EntryCredit)
		if err != nil {
			return err
		}
		for good, amt := range transfers {
			if !amt.IsZero() {
				slog.Warn("stored transfers do not balance", "run", runID, "good", good, "net", amt.String())
			}
		}
		minted, err := db.JournalNet(runID, ledger.EntryMint, ledger.EntryBurn)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "run %s, %s rounds exported, net money minted %s\n",
			runID, last, minted[agents.GoodMoney].StringFixed(2))
		return writeSeries(cmd.OutOrStdout(), money, utility)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDatabase, "db", "", "SQLite file written by run --db")
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "run id logged at the start of the run")
	reportCmd.MarkFlagRequired("db")
	reportCmd.MarkFlagRequired("run")
}
