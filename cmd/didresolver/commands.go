package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/trustbloc/logutil-go/pkg/log"

	didsdk "github.com/pilacorp/go-did-sdk"
	"github.com/pilacorp/go-did-sdk/backend"
	"github.com/pilacorp/go-did-sdk/config"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
)

const (
	resolverURLFlagName  = "resolver-url"
	resolverURLFlagUsage = "URL of the DID resolver." +
		" Alternatively, this can be set with the following environment variable: " + config.EnvResolverURL

	methodFlagName  = "method"
	methodFlagUsage = "Supported DID method." +
		" Alternatively, this can be set with the following environment variable: " + config.EnvMethod

	timeoutFlagName  = "timeout"
	timeoutFlagUsage = "Timeout of a resolver round trip." +
		" Alternatively, this can be set with the following environment variable: " + config.EnvRequestTimeout

	metadataDBFlagName  = "metadata-db"
	metadataDBFlagUsage = "Path of a bolt database persisting the chain metadata of resolved DIDs and credentials."

	retriesFlagName  = "max-retries"
	retriesFlagUsage = "Retries of transient resolver failures." +
		" Alternatively, this can be set with the following environment variable: " + config.EnvMaxRetries

	allFlagName    = "all"
	issuerFlagName = "issuer"
	skipFlagName   = "skip"
	limitFlagName  = "limit"
)

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "didresolver",
		Short: "Parse and resolve DIDs and credentials",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.SetOut(out)

	defaults := config.FromEnv()

	rootCmd.PersistentFlags().String(resolverURLFlagName, defaults.ResolverURL, resolverURLFlagUsage)
	rootCmd.PersistentFlags().String(methodFlagName, defaults.Method, methodFlagUsage)
	rootCmd.PersistentFlags().Duration(timeoutFlagName, defaults.RequestTimeout, timeoutFlagUsage)
	rootCmd.PersistentFlags().Int(retriesFlagName, defaults.MaxRetries, retriesFlagUsage)
	rootCmd.PersistentFlags().String(metadataDBFlagName, "", metadataDBFlagUsage)

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newCredentialCmd())
	rootCmd.AddCommand(newListCmd())

	return rootCmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "parse <did-url>",
		Short:        "Parse a DID or DID URL and print its components",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromFlags(cmd)
			if err != nil {
				return err
			}

			u, err := did.NewParser(did.WithMethod(cfg.Method)).ParseURL(args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, urlComponents(u))
		},
	}
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "resolve <did>",
		Short:        "Resolve a DID document, or its whole biography with --all",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, b, closeBackend, err := newBackend(cmd)
			if err != nil {
				return err
			}
			defer closeBackend()

			id, err := did.NewParser(did.WithMethod(cfg.Method)).ParseDID(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			all, err := cmd.Flags().GetBool(allFlagName)
			if err != nil {
				return err
			}

			if all {
				bio, err := b.ResolveDIDBiography(ctx, id)
				if err != nil {
					return err
				}
				if bio == nil {
					return fmt.Errorf("%s not found", id)
				}

				return printJSON(cmd, bio)
			}

			doc, err := b.ResolveDocument(ctx, id)
			if err != nil {
				return err
			}

			return printJSON(cmd, resolveOutput{Document: doc, Metadata: doc.Metadata()})
		},
	}

	cmd.Flags().Bool(allFlagName, false, "Print the whole biography of the DID")

	return cmd
}

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "credential <credential-id>",
		Short:        "Resolve a credential and its revocation state",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, b, closeBackend, err := newBackend(cmd)
			if err != nil {
				return err
			}
			defer closeBackend()

			parser := did.NewParser(did.WithMethod(cfg.Method))

			id, err := parser.ParseURL(args[0])
			if err != nil {
				return err
			}

			var issuer did.DID

			if s, _ := cmd.Flags().GetString(issuerFlagName); s != "" {
				if issuer, err = parser.ParseDID(s); err != nil {
					return err
				}
			}

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			cred, md, err := b.ResolveCredential(ctx, id, issuer)
			if err != nil {
				return err
			}
			if cred == nil && md == nil {
				return fmt.Errorf("%s not found", id)
			}

			out := resolveOutput{Metadata: md}
			if cred != nil {
				out.Credential = cred
			}

			return printJSON(cmd, out)
		},
	}

	cmd.Flags().String(issuerFlagName, "", "Issuer DID allowed to have revoked the credential")

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list <did>",
		Short:        "List the ids of the credentials declared by a DID",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, b, closeBackend, err := newBackend(cmd)
			if err != nil {
				return err
			}
			defer closeBackend()

			id, err := did.NewParser(did.WithMethod(cfg.Method)).ParseDID(args[0])
			if err != nil {
				return err
			}

			skip, err := cmd.Flags().GetInt(skipFlagName)
			if err != nil {
				return err
			}

			limit, err := cmd.Flags().GetInt(limitFlagName)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cfg)
			defer cancel()

			ids, err := b.ListCredentials(ctx, id, skip, limit)
			if err != nil {
				return err
			}

			out := make([]string, 0, len(ids))
			for _, u := range ids {
				out = append(out, u.String())
			}

			return printJSON(cmd, out)
		},
	}

	cmd.Flags().Int(skipFlagName, 0, "Number of credentials to skip")
	cmd.Flags().Int(limitFlagName, backend.DefaultListLimit, "Maximum number of credentials to list")

	return cmd
}

type resolveOutput struct {
	Document   interface{} `json:"document,omitempty"`
	Credential interface{} `json:"credential,omitempty"`
	Metadata   interface{} `json:"metadata,omitempty"`
}

type urlOutput struct {
	DID              string            `json:"did"`
	Method           string            `json:"method"`
	MethodSpecificID string            `json:"methodSpecificId"`
	Params           map[string]string `json:"params,omitempty"`
	Path             string            `json:"path,omitempty"`
	Query            map[string]string `json:"query,omitempty"`
	Fragment         string            `json:"fragment,omitempty"`
}

func urlComponents(u did.DIDURL) urlOutput {
	return urlOutput{
		DID:              u.DID().String(),
		Method:           u.DID().Method(),
		MethodSpecificID: u.DID().MethodSpecificID(),
		Params:           pairMap(u.Params()),
		Path:             u.Path(),
		Query:            pairMap(u.Query()),
		Fragment:         u.Fragment(),
	}
}

func pairMap(pairs []did.Pair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}

	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.Name] = p.Value
	}

	return m
}

func configFromFlags(cmd *cobra.Command) (config.Config, error) {
	resolverURL, err := cmd.Flags().GetString(resolverURLFlagName)
	if err != nil {
		return config.Config{}, err
	}

	method, err := cmd.Flags().GetString(methodFlagName)
	if err != nil {
		return config.Config{}, err
	}

	timeout, err := cmd.Flags().GetDuration(timeoutFlagName)
	if err != nil {
		return config.Config{}, err
	}

	retries, err := cmd.Flags().GetInt(retriesFlagName)
	if err != nil {
		return config.Config{}, err
	}

	return config.FromEnv(
		config.WithResolverURL(resolverURL),
		config.WithMethod(method),
		config.WithRequestTimeout(timeout),
		config.WithMaxRetries(retries),
	), nil
}

func newBackend(cmd *cobra.Command) (config.Config, *backend.Backend, func(), error) {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	path, err := cmd.Flags().GetString(metadataDBFlagName)
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	client, err := didsdk.New(cfg, didsdk.WithMetadataDB(path))
	if err != nil {
		return config.Config{}, nil, nil, err
	}

	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close client", logfields.WithPath(path), log.WithError(err))
		}
	}

	return cfg, client.Backend(), closeClient, nil
}

// commandContext bounds a whole command, retries included.
func commandContext(cmd *cobra.Command, cfg config.Config) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithTimeout(ctx, time.Duration(cfg.MaxRetries+1)*cfg.RequestTimeout)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return err
}
