package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"CSU/internal/cipher"
	"CSU/internal/configurator"
	"CSU/internal/menu"
	"CSU/internal/model"
	"CSU/internal/ui"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	requestPath   string
	acceptPartial bool
	historyLimit  int
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Choose the configuration backend interactively and apply it",
	Args:  cobra.NoArgs,
	RunE:  runWizard,
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Apply a configuration backend described in a YAML request file",
	Long: "Apply a configuration backend without prompting.\n" +
		"The request file carries the same choices the wizard asks for, e.g.\n\n" +
		"    kind: database\n" +
		"    backend: mysql\n" +
		"    server: {host: db.local, database: openPDC, admin_user: root}\n" +
		"    initial_data: true\n",
	Args: cobra.NoArgs,
	RunE: runProvision,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the configuration values replaced by the last successful run",
	Args:  cobra.NoArgs,
	RunE:  runRollback,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded setup runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var cipherCmd = &cobra.Command{
	Use:   "cipher",
	Short: "Encrypt or decrypt a connection string with the shared key",
}

var cipherEncryptCmd = &cobra.Command{
	Use:   "encrypt [value]",
	Short: "Encrypt a value (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCipher(cmd, args, cipher.Default().Encrypt)
	},
}

var cipherDecryptCmd = &cobra.Command{
	Use:   "decrypt [value]",
	Short: "Decrypt a value (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCipher(cmd, args, cipher.Default().Decrypt)
	},
}

func init() {
	provisionCmd.Flags().StringVarP(&requestPath, "request", "r", "", "path to the YAML request file")
	provisionCmd.Flags().BoolVar(&acceptPartial, "accept-partial", false, "keep configuration files already modified when a later one fails")
	_ = provisionCmd.MarkFlagRequired("request")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")

	cipherCmd.AddCommand(cipherEncryptCmd, cipherDecryptCmd)
}

func runWizard(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintBanner()

	prompter := menu.PromptUI{}
	wizard := menu.NewWizard(cfg, prompter, log, func(lines []string) {
		printer.PrintSeparator("-", 50)
		for _, line := range lines {
			printer.PrintLine(line)
		}
		printer.PrintSeparator("-", 50)
	})

	req, err := wizard.Run()
	if errors.Is(err, menu.ErrCancelled) {
		log.Info("Setup cancelled, nothing was changed")
		return nil
	}
	if err != nil {
		return err
	}

	return provision(ctx, req, func(partial *configurator.PartialFailure) (bool, error) {
		return menu.ConfirmOverride(prompter, partial)
	})
}

func runProvision(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	req, err := readRequest(requestPath)
	if err != nil {
		return err
	}

	return provision(ctx, req, func(partial *configurator.PartialFailure) (bool, error) {
		if !acceptPartial {
			log.Warn("%d configuration file(s) were left modified; rerun with --accept-partial or use rollback", len(partial.CompletedTargets))
		}
		return acceptPartial, nil
	})
}

// provision runs req and, when the run stopped after rewriting some
// configuration files, asks confirmOverride whether to keep them.
func provision(ctx context.Context, req *model.Request, confirmOverride func(*configurator.PartialFailure) (bool, error)) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var state *model.State
	_, _, err = s.phase(ctx, func(ctx context.Context) error {
		var runErr error
		state, runErr = s.orchestrator.Run(ctx, req)
		return runErr
	})
	if err != nil {
		log.Debug("Run ended with error: %v", err)
	}

	if partial := s.orchestrator.PartialFailure(); partial != nil {
		ok, err := confirmOverride(partial)
		if err != nil && !errors.Is(err, menu.ErrCancelled) {
			return err
		}
		if ok {
			if _, _, err := s.phase(ctx, s.orchestrator.Override); err != nil {
				return err
			}
		}
	}

	return s.finish(state)
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var state *model.State
	_, _, err = s.phase(ctx, func(ctx context.Context) error {
		var runErr error
		state, runErr = s.orchestrator.Rollback(ctx)
		return runErr
	})
	if err != nil {
		log.Debug("Rollback ended with error: %v", err)
	}
	return s.finish(state)
}

func runHistory(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.history.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintHistory(runs)
	return nil
}

func runCipher(cmd *cobra.Command, args []string, transform func(string) (string, error)) error {
	var value string
	if len(args) == 1 {
		value = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		value = strings.TrimRight(line, "\r\n")
	}

	out, err := transform(value)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func readRequest(path string) (*model.Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read request file %s", path)
	}

	var req model.Request
	if err := yaml.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrapf(err, "request file %s", path)
	}
	return &req, nil
}
