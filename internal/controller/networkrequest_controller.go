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
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

// NetworkRequestReconciler reconciles a NetworkRequest object
type NetworkRequestReconciler struct {
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

// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=networkrequests,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=networkrequests/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=iprouter.networking.metal.ironcore.dev,resources=networkrequests/finalizers,verbs=update
// +kubebuilder:rbac:groups=core,resources=configmaps,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=core,resources=events,verbs=create;patch

// Reconcile is part of the main kubernetes reconciliation loop which aims to
// move the current state of the cluster closer to the desired state.
//
// For more details, check Reconcile and its Result here:
// - https://pkg.go.dev/sigs.k8s.io/controller-runtime@v0.20.3/pkg/reconcile
func (r *NetworkRequestReconciler) Reconcile(ctx context.Context, req ctrl.Request) (_ ctrl.Result, reterr error) {
	log := ctrl.LoggerFrom(ctx)
	log.Info("Reconciling resource")

	obj := new(v1alpha1.NetworkRequest)
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

	s := &networkRequestScope{
		Request: obj,
		Bus:     relation.NewConfigMapBus(r.Client, obj.Namespace, obj.GetAppName(), relation.Requires),
		Role:    roleOrFollower(r.Role),
	}
	s.Requirer = iprouter.NewRequirer(s.Bus, obj.GetRelationName(), log)

	if !obj.DeletionTimestamp.IsZero() {
		if controllerutil.ContainsFinalizer(obj, v1alpha1.FinalizerName) {
			if err := r.finalize(ctx, s); err != nil {
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

	res, err := r.reconcile(ctx, s)
	if err != nil {
		log.Error(err, "Failed to reconcile resource")
		return ctrl.Result{}, err
	}

	return res, nil
}

// networkRequestScope holds the different objects that are read and used during the reconcile.
type networkRequestScope struct {
	Request  *v1alpha1.NetworkRequest
	Bus      *relation.ConfigMapBus
	Requirer *iprouter.Requirer
	Role     iprouter.Role
}

func (r *NetworkRequestReconciler) reconcile(ctx context.Context, s *networkRequestScope) (ctrl.Result, error) {
	log := ctrl.LoggerFrom(ctx)
	nr := s.Request

	if s.Role != iprouter.Leader {
		log.V(1).Info("Not the leader, networks are requested by another instance")
		setReady(&nr.Status.Conditions, nr.Generation, metav1.ConditionFalse, v1alpha1.NotLeaderReason, "Waiting for leadership to request networks")
		return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
	}

	if ref := nr.Spec.RouterRef; ref != nil && *ref != "" {
		if _, err := s.Bus.Join(ctx, nr.GetRelationName(), *ref); err != nil {
			return ctrl.Result{}, fmt.Errorf("failed to join router %q: %w", *ref, err)
		}
	}

	name := nr.GetNetworkName()
	if _, err := s.Requirer.RequestNetwork(ctx, s.Role, nr.Spec.Networks, name); err != nil {
		var verr *iprouter.ValidationError
		switch {
		case errors.Is(err, iprouter.ErrNoRelation):
			log.Info("No relation exists yet, waiting for the application to be integrated")
			setReady(&nr.Status.Conditions, nr.Generation, metav1.ConditionFalse, v1alpha1.NoRelationReason, "No router is integrated with the application")
			return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
		case errors.As(err, &verr):
			if setReady(&nr.Status.Conditions, nr.Generation, metav1.ConditionFalse, v1alpha1.InvalidNetworksReason, err.Error()) {
				r.Recorder.Eventf(nr, corev1.EventTypeWarning, v1alpha1.InvalidNetworksReason, "Networks were not requested: %v", err)
			}
			// The request is not retried until the spec or the routing table changes.
			return ctrl.Result{}, nil
		default:
			return ctrl.Result{}, fmt.Errorf("failed to request networks: %w", err)
		}
	}
	nr.Status.NetworkName = name

	s.Requirer.Subscribe(func(_ context.Context, table *iprouter.RoutingTable) {
		nr.Status.RoutingTable = table.Entries()
	})
	if _, err := s.Requirer.HandleRelationChanged(ctx, s.Role); err != nil {
		return ctrl.Result{}, fmt.Errorf("failed to read routing table: %w", err)
	}

	networks, err := s.Requirer.AllNetworks(ctx, s.Role)
	if err != nil {
		return ctrl.Result{}, fmt.Errorf("failed to read available networks: %w", err)
	}
	nr.Status.AvailableNetworks = networks
	if len(networks) == 0 {
		nr.Status.AvailableNetworks = nil
	}

	if setReady(&nr.Status.Conditions, nr.Generation, metav1.ConditionTrue, v1alpha1.ReadyReason, "Networks are requested") {
		r.Recorder.Eventf(nr, corev1.EventTypeNormal, "NetworksRequested", "Requested %d networks as %q", len(nr.Spec.Networks), name)
	}
	return ctrl.Result{RequeueAfter: Jitter(r.RequeueInterval)}, nil
}

func (r *NetworkRequestReconciler) finalize(ctx context.Context, s *networkRequestScope) error {
	out, err := s.Requirer.Withdraw(ctx, s.Role)
	if err != nil {
		return fmt.Errorf("failed to withdraw networks: %w", err)
	}
	if out == iprouter.Skipped {
		// Only the leader may touch the relation bus, keep the finalizer until it does.
		return errors.New("not the leader, cannot withdraw networks")
	}

	ref := s.Request.Spec.RouterRef
	if ref == nil || *ref == "" {
		return nil
	}
	rels, err := s.Bus.Relations(ctx, s.Request.GetRelationName())
	if err != nil {
		return fmt.Errorf("failed to list relations: %w", err)
	}
	for _, rel := range rels {
		if rel.App != *ref {
			continue
		}
		if err := s.Bus.Leave(ctx, rel); err != nil {
			return err
		}
		r.Recorder.Eventf(s.Request, corev1.EventTypeNormal, "RelationRemoved", "Left router %q", *ref)
	}
	return nil
}

// SetupWithManager sets up the controller with the Manager.
func (r *NetworkRequestReconciler) SetupWithManager(mgr ctrl.Manager) error {
	if r.RequeueInterval == 0 {
		return errors.New("requeue interval must not be 0")
	}

	filter, err := watchFilter(r.WatchFilterValue)
	if err != nil {
		return err
	}

	return ctrl.NewControllerManagedBy(mgr).
		For(&v1alpha1.NetworkRequest{}, builder.WithPredicates(filter)).
		Named("networkrequest").
		// Watches enqueues the NetworkRequests of the requirer application whenever a router publishes a new routing table.
		Watches(
			&corev1.ConfigMap{},
			handler.EnqueueRequestsFromMapFunc(r.configMapToNetworkRequests),
			builder.WithPredicates(relationFilter),
		).
		Complete(r)
}

// configMapToNetworkRequests is a [handler.MapFunc] to be used to enqueue requests for reconciliation
// for the NetworkRequests of the requirer application of a relation ConfigMap.
func (r *NetworkRequestReconciler) configMapToNetworkRequests(ctx context.Context, obj client.Object) []ctrl.Request {
	cm, ok := obj.(*corev1.ConfigMap)
	if !ok {
		panic(fmt.Sprintf("Expected a ConfigMap but got a %T", obj))
	}

	log := ctrl.LoggerFrom(ctx, "ConfigMap", klog.KObj(cm))

	app := cm.Labels[v1alpha1.RequirerLabel]
	if app == "" {
		return nil
	}

	list := new(v1alpha1.NetworkRequestList)
	if err := r.List(ctx, list, client.InNamespace(cm.Namespace)); err != nil {
		log.Error(err, "Failed to list NetworkRequests")
		return nil
	}

	requests := []ctrl.Request{}
	for _, nr := range list.Items {
		if nr.GetAppName() != app || nr.GetRelationName() != cm.Labels[v1alpha1.RelationLabel] {
			continue
		}
		log.V(1).Info("Enqueuing NetworkRequest for reconciliation", "NetworkRequest", klog.KObj(&nr))
		requests = append(requests, ctrl.Request{NamespacedName: client.ObjectKeyFromObject(&nr)})
	}
	return requests
}
