package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"match-workers/internal/app"
	"match-workers/internal/matching/pipeline"
	"match-workers/internal/matching/scorer"
	"match-workers/internal/models"
)

var scoreCmd = &cobra.Command{
	Use:   "score <candidateId> <jobId>",
	Short: "Score one pair, record it and evaluate the alert",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		noNotify, _ := cmd.Flags().GetBool("no-notify")

		s, err := openSession(app.Options{})
		if err != nil {
			return err
		}
		defer s.Close()

		res, err := s.app.Pipeline.ScoreAndRecord(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}

		out := map[string]interface{}{
			"record":      res.Record,
			"created":     res.Created,
			"explanation": scorer.Explain(scorer.Result{Score: res.Record.Score, Criteria: res.Record.Criteria}),
		}
		if !noNotify {
			outcome, err := s.app.Pipeline.EvaluateAndNotify(s.ctx, res.Record, res.Job)
			if err != nil {
				return err
			}
			out["outcome"] = outcome
		}
		out["state"] = pipeline.StateOf(res.Record, res.Job)
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a match sweep over active candidates and jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		candidates, _ := cmd.Flags().GetStringSlice("candidates")
		jobs, _ := cmd.Flags().GetStringSlice("jobs")

		s, err := openSession(app.Options{})
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.app.Pipeline.RunBatch(s.ctx, pipeline.BatchRequest{CandidateIDs: candidates, JobIDs: jobs})
		if report != nil {
			s.obs.RecordBatchPairs(s.ctx, report.Processed, "cli")
			if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
				return perr
			}
		}
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <candidateId> <jobId>",
	Short: "Show the stored match record and its state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(app.Options{DryRun: true})
		if err != nil {
			return err
		}
		defer s.Close()

		rec, state, err := s.app.Pipeline.Lookup(s.ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"record": rec,
			"state":  state,
		})
	},
}

var topCmd = &cobra.Command{
	Use:   "top <jobId>",
	Short: "List the best indexed candidates for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minScore, _ := cmd.Flags().GetInt("min-score")
		size, _ := cmd.Flags().GetInt("size")

		s, err := openSession(app.Options{DryRun: true})
		if err != nil {
			return err
		}
		defer s.Close()

		if s.app.Indexer == nil {
			return errors.New("match index is not configured (database.elasticsearch.addresses)")
		}
		docs, err := s.app.Indexer.TopMatches(s.ctx, args[0], minScore, size)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), docs)
	},
}

// importFile is the seed format accepted by the import command.
type importFile struct {
	Contacts   []models.Contact
	Candidates []models.CandidateProfile
	Jobs       []models.JobPosting
}

// parseImport decodes each profile over its defaults, so an entry without
// "active" is active and a job without "matchThreshold" gets the default
// threshold. Explicit values, including a threshold of 0, are kept.
func parseImport(data []byte) (*importFile, error) {
	var raw struct {
		Contacts   []models.Contact  `json:"contacts"`
		Candidates []json.RawMessage `json:"candidates"`
		Jobs       []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	in := &importFile{
		Contacts:   raw.Contacts,
		Candidates: make([]models.CandidateProfile, len(raw.Candidates)),
		Jobs:       make([]models.JobPosting, len(raw.Jobs)),
	}
	for i, msg := range raw.Candidates {
		in.Candidates[i] = models.CandidateProfile{Active: true}
		if err := json.Unmarshal(msg, &in.Candidates[i]); err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	for i, msg := range raw.Jobs {
		in.Jobs[i] = models.JobPosting{MatchThreshold: models.DefaultMatchThreshold, Active: true}
		if err := json.Unmarshal(msg, &in.Jobs[i]); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
	}
	return in, nil
}

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Upsert contacts, candidates and jobs from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		in, err := parseImport(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		s, err := openSession(app.Options{DryRun: true})
		if err != nil {
			return err
		}
		defer s.Close()

		for i := range in.Contacts {
			if err := s.app.Store.SaveContact(s.ctx, &in.Contacts[i]); err != nil {
				return err
			}
		}
		candidateIDs := make([]string, 0, len(in.Candidates))
		for i := range in.Candidates {
			if err := scorer.ValidateCandidate(&in.Candidates[i]); err != nil {
				return err
			}
			if err := s.app.Store.SaveCandidate(s.ctx, &in.Candidates[i]); err != nil {
				return err
			}
			candidateIDs = append(candidateIDs, in.Candidates[i].ID)
		}
		jobIDs := make([]string, 0, len(in.Jobs))
		for i := range in.Jobs {
			if err := scorer.ValidateJob(&in.Jobs[i]); err != nil {
				return err
			}
			if err := s.app.Store.SaveJob(s.ctx, &in.Jobs[i]); err != nil {
				return err
			}
			jobIDs = append(jobIDs, in.Jobs[i].ID)
		}

		if s.app.Cache != nil {
			if err := s.app.Cache.Invalidate(s.ctx, candidateIDs, jobIDs); err != nil {
				s.log.WithError(err).Warn("Failed to invalidate cached profiles", nil)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d contacts, %d candidates, %d jobs\n",
			len(in.Contacts), len(candidateIDs), len(jobIDs))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the match schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(app.Options{Migrate: true, DryRun: true})
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

func init() {
	scoreCmd.Flags().Bool("no-notify", false, "record the score without evaluating the alert")

	batchCmd.Flags().StringSlice("candidates", nil, "candidate ids (default: all active)")
	batchCmd.Flags().StringSlice("jobs", nil, "job ids (default: all active)")

	topCmd.Flags().Int("min-score", 0, "lowest score to include")
	topCmd.Flags().Int("size", 10, "number of candidates to return")

	rootCmd.AddCommand(scoreCmd, batchCmd, statusCmd, topCmd, importCmd, migrateCmd)
}
