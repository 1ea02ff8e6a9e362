// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	kerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/client-go/tools/record"
	"k8s.io/klog/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/handler"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
	"github.com/ironcore-dev/ip-router-operator/internal/metrics"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// RouterReconciler reconciles a Router object
type RouterReconciler struct {
	client.Client
	Scheme *runtime.Scheme

	// WatchFilterValue is the label value used to filter events prior to reconciliation.
	WatchFilterValue string

	// Recorder is used to record events for the controller.
	// More info: https://book.kubebuilder.io/reference/raising-events
	Recorder record.EventRecorder

	// Role reports whether this instance currently holds the leader lease.
	Role func() iprouter.Role

	// RequeueInterval is the duration after which the controller should requeue the reconciliation,
	// regardless of changes.
	RequeueInterval time.Duration
}

// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=routers,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=routers/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=routers/finalizers,verbs=update
// +kubebuilder:rbac:groups=core,resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=core,resources=events,verbs=create;patch

// Reconcile is part of the main kubernetes reconciliation loop which aims to
// move the current state of the cluster closer to the desired state.
//
// For more details, check Reconcile and its Result here:
// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.20.3/pkg/reconcile
func (r *RouterReconciler) Reconcile(ctx context.Context, req ctrl.Request) (_ ctrl.Result, reterr error) {
	log := ctrl.LoggerFrom(ctx)
	log.Info("Reconciling resource")

	obj := new(v1alpha1.Router)
	if err := r.Get(ctx, req.NamespacedName, obj); err != nil {
		if apierrors.IsNotFound(err) {
			// If the custom resource is not found then it usually means that it was deleted or not created
			// In this way, we will stop the reconciliation
			log.Info("Resource not found. Ignoring since object must be deleted")
			return ctrl.Result{}, nil
		}
		// Error reading the object - requeue the request.
		log.Error(err, "Failed to get resource")
		return ctrl.Result{}, err
	}

	prov := iprouter.NewProvider(
		relation.NewConfigMapBus(r.Client, obj.Namespace, obj.GetAppName(), relation.Provides),
		obj.GetRelationName(),
		log,
	)

	if !obj.DeletionTimestamp.IsZero() {
		if controllerutil.ContainsFinalizer(obj, v1alpha1.FinalizerName) {
			if err := r.finalize(ctx, obj, prov); err != nil {
				log.Error(err, "Failed to finalize resource")
				return ctrl.Result{}, err
			}
			controllerutil.RemoveFinalizer(obj, v1alpha1.FinalizerName)
			if err := r.Update(ctx, obj); err != nil {
				log.Error(err, "Failed to remove finalizer from resource")
				return ctrl.Result{}, err
			}
		}
		log.Info("Resource is being deleted, skipping reconciliation")
		return ctrl.Result{}, nil
	}

	// More info: https://kubernetes.io/docs/concepts/overview/working-with-objects/finalizers
	if !controllerutil.ContainsFinalizer(obj, v1alpha1.FinalizerName) {
		controllerutil.AddFinalizer(obj, v1alpha1.FinalizerName)
		if err := r.Update(ctx, obj); err != nil {
			log.Error(err, "Failed to add finalizer to resource")
			return ctrl.Result{}, err
		}
		log.Info("Added finalizer to resource")
		return ctrl.Result{}, nil
	}

	orig := obj.DeepCopy()
	if initConditions(&obj.Status.Conditions) {
		log.Info("Initializing status conditions")
		return ctrl.Result{}, r.Status().Update(ctx, obj)
	}

	// Always attempt to update the status after reconciliation
	defer func() {
		if !equality.Semantic.DeepEqual(orig.Status, obj.Status) {
			if err := r.Status().Patch(ctx, obj, client.MergeFrom(orig)); err != nil {
				log.Error(err, "Failed to update status")
				reterr = kerrors.NewAggregate([]error{reterr, err})
			}
		}
	}()

	res, err := r.reconcile(ctx, obj, prov)
	if err != nil {
		log.Error(err, "Failed to reconcile resource")
		return ctrl.Result{}, err
	}

	return res, nil
}

func (r *RouterReconciler) reconcile(ctx context.Context, router *v1alpha1.Router, prov *iprouter.Provider) (ctrl.Result, error) {
	log := ctrl.LoggerFrom(ctx)

	res, err := prov.Reconcile(ctx, roleOrFollower(r.Role))
	if err != nil {
		setReady(&router.Status.Conditions, router.Generation, metav1.ConditionFalse, v1alpha1.ReconcilePendingReason, err.Error())
		return ctrl.Result{}, fmt.Errorf("failed to publish routing table: %w", err)
	}

	if res.Outcome == iprouter.Skipped {
		log.V(1).Info("Not the leader, routing table is published by another instance")
		setReady(&router.Status.Conditions, router.Generation, metav1.ConditionFalse, v1alpha1.NotLeaderReason, "Waiting for leadership to publish the routing table")
		return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
	}

	metrics.Observe(client.ObjectKeyFromObject(router).String(), res)

	entries := res.Table.Entries()
	if !equality.Semantic.DeepEqual(router.Status.RoutingTable, entries) {
		r.Recorder.Eventf(router, corev1.EventTypeNormal, "RoutingTablePublished", "Published %d networks under %d names to %d relations", len(res.Table.Flatten()), res.Table.Len(), res.Relations)
	}
	router.Status.RoutingTable = entries
	router.Status.Relations = int32(res.Relations)
	router.Status.RejectedNetworks = int32(len(res.Rejected))

	if len(res.Rejected) > 0 {
		errs := make([]error, 0, len(res.Rejected))
		for _, rej := range res.Rejected {
			errs = append(errs, fmt.Errorf("%s (%s): %w", rej.App, rej.Name, rej.Err))
		}
		agg := kerrors.NewAggregate(errs)
		if setReady(&router.Status.Conditions, router.Generation, metav1.ConditionTrue, v1alpha1.NetworksRejectedReason, agg.Error()) {
			r.Recorder.Eventf(router, corev1.EventTypeWarning, v1alpha1.NetworksRejectedReason, "Dropped %d declared networks: %v", len(res.Rejected), agg)
		}
		return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
	}

	setReady(&router.Status.Conditions, router.Generation, metav1.ConditionTrue, v1alpha1.ReadyReason, "Routing table is published")
	return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
}

func (r *RouterReconciler) finalize(ctx context.Context, router *v1alpha1.Router, prov *iprouter.Provider) error {
	out, err := prov.Withdraw(ctx, roleOrFollower(r.Role))
	if err != nil {
		return fmt.Errorf("failed to withdraw routing table: %w", err)
	}
	if out == iprouter.Skipped {
		// Only the leader may touch the relation bus, keep the finalizer until it does.
		return errors.New("not the leader, cannot withdraw routing table")
	}
	metrics.Forget(client.ObjectKeyFromObject(router).String())
	r.Recorder.Eventf(router, corev1.EventTypeNormal, "RoutingTableWithdrawn", "Routing table withdrawn from all relations")
	return nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *RouterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.RequeueInterval == 0 {
		return errors.New("requeue interval must not be 0")
	}

	filter, err := watchFilter(r.WatchFilterValue)
	if err != nil {
		return err
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.Router{}, builder.WithPredicates(filter)).
		Named("router").
		// Watches enqueues the Router of the provider application whenever one of its relations changes.
		Watches(
			&corev1.ConfigMap{},
			handler.EnqueueRequestsFromMapFunc(r.configMapToRouters),
			builder.WithPredicates(relationFilter),
		).
		Complete(r)
}

// configMapToRouters is a [handler.MapFunc] to be used to enqueue requests for reconciliation
// for the Routers of the provider application of a relation ConfigMap.
func (r *RouterReconciler) configMapToRouters(ctx context.Context, obj client.Object) []ctrl.Request {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		panic(fmt.Sprintf("Expected a ConfigMap but got a %T", obj))
	}

	log := ctrl.LoggerFrom(ctx, "ConfigMap", klog.KObj(cm))

	app := cm.Labels[v1alpha1.ProviderLabel]
	if app == "" {
		return nil
	}

	list := new(v1alpha1.RouterList)
	if err := r.List(ctx, list, client.InNamespace(cm.Namespace)); err != nil {
		log.Error(err, "Failed to list Routers")
		return nil
	}

	requests := []ctrl.Request{}
	for _, router := range list.Items {
		if router.GetAppName() != app || router.GetRelationName() != cm.Labels[v1alpha1.RelationLabel] {
			continue
		}
		log.V(1).Info("Enqueuing Router for reconciliation", "Router", klog.KObj(&router))
		requests = append(requests, ctrl.Request{NamespacedName: client.ObjectKeyFromObject(&router)})
	}
	return requests
}
