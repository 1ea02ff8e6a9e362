// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap/zapcore"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/controller"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
	"github.com/ironcore-dev/ip-router-operator/internal/tableserver"
	webhookv1alpha1 "github.com/ironcore-dev/ip-router-operator/internal/webhook/v1alpha1"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	var (
		metricsAddr          string
		probeAddr            string
		enableLeaderElection bool
		enableWebhooks       bool
		watchFilterValue     string
		tableServerPort      int
		requeueInterval      time.Duration
	)
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metrics endpoint binds to. Use 0 to disable the metrics service.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false, "Enable leader election for controller manager. "+
		"Only the elected instance publishes routing tables and writes network declarations.")
	flag.BoolVar(&enableWebhooks, "enable-webhooks", true, "Enable the validating webhook for NetworkRequests.")
	flag.StringVar(&watchFilterValue, "watch-filter", "", "Label value that objects must carry in the "+v1alpha1.WatchLabel+" label to be reconciled. Empty means all objects.")
	flag.IntVar(&tableServerPort, "table-server-port", 8090, "The port the routing table HTTP server listens on. Use 0 to disable it.")
	flag.DurationVar(&requeueInterval, "requeue-interval", 30*time.Second, "The interval after which routers and network requests are reconciled again.")

	opts := zap.Options{
		Development: true,
		TimeEncoder: zapcore.ISO8601TimeEncoder,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		setupLog.Info("Set GOMAXPROCS", "message", format, "args", args)
	})); err != nil {
		setupLog.Error(err, "unable to set GOMAXPROCS")
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsAddr},
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "ip-router.networking.metal.ironcore.dev",
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	role := iprouter.ElectedRole(mgr.Elected())

	if err = (&controller.RouterReconciler{
		Client:           mgr.GetClient(),
		Scheme:           mgr.GetScheme(),
		WatchFilterValue: watchFilterValue,
		Recorder:         mgr.GetEventRecorderFor("router-controller"),
		Role:             role,
		RequeueInterval:  requeueInterval,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Router")
		os.Exit(1)
	}
	if err = (&controller.NetworkRequestReconciler{
		Client:           mgr.GetClient(),
		Scheme:           mgr.GetScheme(),
		WatchFilterValue: watchFilterValue,
		Recorder:         mgr.GetEventRecorderFor("networkrequest-controller"),
		Role:             role,
		RequeueInterval:  requeueInterval,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "NetworkRequest")
		os.Exit(1)
	}

	if enableWebhooks {
		if err = webhookv1alpha1.SetupNetworkRequestWebhookWithManager(mgr); err != nil {
			setupLog.Error(err, "unable to create webhook", "webhook", "NetworkRequest")
			os.Exit(1)
		}
	}
	// +kubebuilder:scaffold:builder

	if tableServerPort > 0 {
		if err = mgr.Add(tableserver.NewHTTPServer(mgr.GetClient(), tableServerPort, role)); err != nil {
			setupLog.Error(err, "unable to add routing table server")
			os.Exit(1)
		}
	}

	if err = mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err = mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager")
	if err = mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}
