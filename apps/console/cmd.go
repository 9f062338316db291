package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	logsvc "github.com/trezcool/masomo-console/services/logger"
	"github.com/trezcool/masomo-console/storage/remote"
)

const loginHint = "Your sign-in was rejected by the school server. " +
	"Get a new token, set %s_BACKEND_TOKEN and run the command again."

var (
	errHelp          = errors.New("help provided")
	errNeedsYes      = errors.New("the selection has warnings: confirm interactively or pass --yes")
	errNeedsConfirm  = errors.New("bulk promotion must be confirmed: run it interactively or pass --yes")
	errNoInteraction = errors.New("a terminal is required to choose interactively")
)

type commandLine struct {
	configFile string
	conf       *core.Config
	logger     core.Logger
	backend    promotion.Backend
	tokens     *remote.TokenStore
	orc        *promotion.Orchestrator

	prompter   Prompter
	isTerminal func() bool
	out        io.Writer
	errOut     io.Writer

	authOnce sync.Once
	authErr  error
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := newRootCmd(cli)
	root.SetArgs(args)
	root.SetOut(cli.out)
	root.SetErr(cli.errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(cli *commandLine) *cobra.Command {
	root := &cobra.Command{
		Use:           "masomo-console",
		Short:         "Promote students between class levels at the end of an academic session",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.PersistentFlags().StringVar(&cli.configFile, "config", "", "config file merged over the defaults")

	root.AddCommand(
		newSessionCmd(cli),
		newClassesCmd(cli),
		newStudentsCmd(cli),
		newValidateCmd(cli),
		newPromoteCmd(cli),
		newBulkPromoteCmd(cli),
		newTokenCmd(cli),
	)
	return root
}

// setup loads whatever dependency was not provided up front.
func (cli *commandLine) setup() error {
	if cli.conf == nil {
		conf, err := core.NewConfig(cli.configFile)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		cli.conf = conf
	}
	if cli.logger == nil {
		logger := logsvc.NewRollbarLogger(log.New(cli.errOut, "CONSOLE : ", log.LstdFlags), cli.conf)
		logger.Enable(!cli.conf.Debug)
		cli.logger = logger
	}
	if cli.backend == nil {
		cli.tokens = remote.NewTokenStore(cli.conf.Backend.Token)
		client, err := remote.NewClient(
			cli.conf.Backend.BaseURL,
			cli.tokens,
			remote.WithTimeout(cli.conf.Backend.Timeout),
			remote.WithLogger(cli.logger),
		)
		if err != nil {
			return err
		}
		cli.backend = client
	}
	return nil
}

// connect loads the current session, the class catalog and the roster.
func (cli *commandLine) connect(ctx context.Context) error {
	cli.orc = promotion.New(
		cli.backend,
		promotion.WithLogger(cli.logger),
		promotion.WithBoundary(promotion.BoundaryFunc(cli.unauthenticated)),
		promotion.WithTimeout(cli.conf.Backend.Timeout),
		promotion.WithDebounce(cli.conf.Promotion.Debounce),
		promotion.WithNoticeTTL(cli.conf.Promotion.NoticeTTL),
	)
	cli.orc.Notices().Subscribe(cli.printNotice)
	if err := cli.orc.Load(ctx); err != nil {
		return cli.authError(err)
	}
	return nil
}

// unauthenticated is the session boundary: the token is dropped and the operator sent back to sign in.
func (cli *commandLine) unauthenticated(err error) {
	cli.authOnce.Do(func() {
		cli.authErr = err
		if cli.tokens != nil {
			cli.tokens.Set("")
		}
		env := "DEV"
		if cli.conf != nil && cli.conf.Env != "" {
			env = cli.conf.Env
		}
		_, _ = fmt.Fprintln(cli.errOut, color.RedString(loginHint, env))
	})
}

// authError prefers the credential failure over err when one was escalated.
func (cli *commandLine) authError(err error) error {
	if cli.authErr != nil {
		return cli.authErr
	}
	return err
}

func (cli *commandLine) interactive() bool {
	return cli.isTerminal != nil && cli.isTerminal()
}
