package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	weblogicv1alpha1 "github.com/CATDOGME/domain-admin/api/v1alpha1"
	"github.com/CATDOGME/domain-admin/internal/authz"
	"github.com/CATDOGME/domain-admin/internal/backend"
	"github.com/CATDOGME/domain-admin/internal/calls"
	"github.com/CATDOGME/domain-admin/internal/kube"
	"github.com/CATDOGME/domain-admin/internal/logging"
	"github.com/CATDOGME/domain-admin/internal/tuning"
)

var setupLog = ctrl.Log.WithName("setup")

type options struct {
	mode       string
	token      string
	namespaces []string
	tuningFile string
	selectors  []string
	verbosity  int
	zapOpts    zap.Options
}

func main() {
	logging.InitSetupLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	o := &options{zapOpts: zap.Options{Development: true}}

	root := &cobra.Command{
		Use:           "domain-admin",
		Short:         "Administer WebLogic domains managed by the operator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	goFlags := flag.NewFlagSet("domain-admin", flag.ContinueOnError)
	o.zapOpts.BindFlags(goFlags)
	if f := flag.CommandLine.Lookup("kubeconfig"); f != nil {
		goFlags.Var(f.Value, f.Name, f.Usage)
	}

	fs := root.PersistentFlags()
	fs.StringVar(&o.mode, "mode", string(authz.ModeDedicated), "authorization mode, dedicated or shared")
	fs.StringVar(&o.token, "token", os.Getenv("DOMAIN_ADMIN_TOKEN"), "bearer token of the caller")
	fs.StringSliceVar(&o.namespaces, "namespaces", []string{"default"}, "namespaces whose domains are managed")
	fs.StringVar(&o.tuningFile, "tuning-file", "", "YAML or JSON file with call tuning, reloaded on change")
	fs.StringSliceVar(&o.selectors, "selector", nil, "label selectors restricting the listed domains")
	fs.IntVarP(&o.verbosity, "verbosity", "v", logging.DEFAULT, "number for the log level verbosity")
	fs.AddGoFlagSet(goFlags)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		logging.InitLogging(&o.zapOpts, o.verbosity, flagChanged(cmd.Flags(), "zap-log-level"))

		var (
			t   tuning.CallTuning
			err error
		)
		if o.tuningFile != "" {
			t, err = tuning.Watch(cmd.Context(), o.tuningFile)
		} else {
			t, err = tuning.Load("")
		}
		if err != nil {
			return fmt.Errorf("failed to load tuning: %w", err)
		}
		setupLog.V(logging.VERBOSE).Info("call tuning", "requestLimit", t.RequestLimit,
			"timeoutSeconds", t.TimeoutSeconds, "maxRetryCount", t.MaxRetryCount)
		return nil
	}

	root.AddCommand(
		newListCommand(o),
		newClustersCommand(o),
		newActionCommand(o, "introspect", backend.ActionIntrospect, "Start a new introspection of a domain"),
		newActionCommand(o, "restart", backend.ActionRestart, "Roll the servers of a domain"),
		newScaleCommand(o),
	)
	return root
}

func flagChanged(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

func newListCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the UIDs of the managed domains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := o.newBackend(cmd.Context())
			if err != nil {
				return err
			}
			uids, err := b.GetDomainUIDs(cmd.Context())
			if err != nil {
				return err
			}
			for _, uid := range uids {
				fmt.Fprintln(cmd.OutOrStdout(), uid)
			}
			return nil
		},
	}
}

func newClustersCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clusters DOMAIN_UID",
		Short: "List the clusters of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.newBackend(cmd.Context())
			if err != nil {
				return err
			}
			names, err := b.GetClusters(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
}

func newActionCommand(o *options, use string, action backend.ActionType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " DOMAIN_UID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := o.newBackend(cmd.Context())
			if err != nil {
				return err
			}
			d, err := b.PerformDomainAction(cmd.Context(), args[0], backend.NewDomainAction(action))
			if err != nil {
				return err
			}
			printDomain(cmd, d)
			return nil
		},
	}
}

func newScaleCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scale DOMAIN_UID CLUSTER REPLICAS",
		Short: "Set the replica count of a cluster",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			replicas, err := parseReplicas(args[2])
			if err != nil {
				return err
			}
			b, err := o.newBackend(cmd.Context())
			if err != nil {
				return err
			}
			d, err := b.ScaleCluster(cmd.Context(), args[0], args[1], replicas)
			if err != nil {
				return err
			}
			printDomain(cmd, d)
			return nil
		},
	}
}

func parseReplicas(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("replicas must be an integer, got %q", s)
	}
	return n, nil
}

func printDomain(cmd *cobra.Command, d *weblogicv1alpha1.Domain) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s introspectVersion=%q restartVersion=%q resourceVersion=%s\n",
		d.Namespace, d.Name, d.Spec.IntrospectVersion, d.Spec.RestartVersion, d.ResourceVersion)
}

// newBackend builds the clients and authorizer for one command.
func (o *options) newBackend(ctx context.Context) (*backend.Backend, error) {
	mode := authz.Mode(o.mode)
	cfg, err := ctrl.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	// dedicated 模式下调用方 token 直接访问 API server
	if mode == authz.ModeDedicated && o.token != "" {
		if cfg, err = kube.ConfigForAccessToken(cfg, o.token); err != nil {
			return nil, err
		}
	}
	clients, err := kube.NewClients(cfg, nil)
	if err != nil {
		return nil, err
	}
	a, err := authz.ForMode(ctx, mode, o.token, clients.Clientset)
	if err != nil {
		return nil, err
	}
	if cc, ok := a.(*authz.CredentialChecked); ok {
		log.FromContext(ctx).V(logging.DEBUG).Info("caller authenticated", "user", cc.Identity().Username)
	}

	domains := calls.NewDomainCallBuilder(clients.Client)
	if len(o.selectors) > 0 {
		domains = domains.WithLabelSelectors(o.selectors...)
	}
	return backend.New(domains, a, o.namespaces), nil
}
