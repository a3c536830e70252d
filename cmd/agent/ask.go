package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"retrieval-agent/internal/adapter/console"
	"retrieval-agent/internal/di"
	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/logger"

	"github.com/spf13/cobra"
)

func askCmd(load func() di.Config) *cobra.Command {
	var evaluate bool
	var logDir string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question, streaming the agent's steps",
		Long:  "Answer a question, streaming the agent's steps. The question is read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Enter a question for the agent:")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read question: %w", err)
				}
				question = strings.TrimSpace(line)
			}

			cfg := load()
			cfg.LogQuiet = true
			if cfg.LogFile == "" && logDir != "" {
				cfg.LogFile = logger.RunLogFile(logDir, question, time.Now())
			}

			container, err := di.NewContainer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer container.Close()

			container.Logger.Info("Question received", "question", question)
			presenter := console.NewPresenter(cmd.OutOrStdout(), container.Executor.Config().MaxIterations)

			var final *entity.AgentRun
			var runErr error
			for ev := range container.Executor.Run(cmd.Context(), entity.Question{Text: question}) {
				presenter.Render(ev)
				switch ev.Type {
				case entity.EventFinalAnswer:
					final = ev.Run
				case entity.EventRunFailed:
					runErr = ev.Err
				}
			}
			if runErr != nil {
				return runErr
			}
			if final == nil {
				return errors.New("run ended without an answer")
			}

			if evaluate {
				result, err := container.Evaluator.Evaluate(cmd.Context(), entity.EvaluationCriteria{
					Question: question,
					Answer:   final.Answer,
					Steps:    final.Steps,
				})
				if err != nil {
					container.Logger.Warn("Evaluation failed", "error", err)
					fmt.Fprintf(os.Stderr, "evaluation failed: %v\n", err)
					return nil
				}
				presenter.ShowEvaluation(result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "ask the model to grade the final answer")
	cmd.Flags().StringVar(&logDir, "log-dir", "log", "directory for per-run log files when LOG_FILE is unset")
	return cmd
}
