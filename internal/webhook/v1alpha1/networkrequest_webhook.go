// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	kerrors "k8s.io/apimachinery/pkg/util/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
)

// log is for logging in this package.
var networkrequestlog = logf.Log.WithName("networkrequest-resource")

// SetupNetworkRequestWebhookWithManager registers the webhook for NetworkRequest in the manager.
func SetupNetworkRequestWebhookWithManager(mgr ctrl.Manager) error {
	return ctrl.NewWebhookManagedBy(mgr).
		For(&v1alpha1.NetworkRequest{}).
		WithValidator(&NetworkRequestCustomValidator{mgr.GetClient()}).
		Complete()
}

// +kubebuilder:webhook:path=/validate-iprouter-networking-metal-ironcore-dev-v1alpha1-networkrequest,mutating=false,failurePolicy=Fail,sideEffects=None,groups=iprouter.networking.metal.ironcore.dev,resources=networkrequests,verbs=create;update,versions=v1alpha1,name=networkrequest-v1alpha1.kb.io,admissionReviewVersions=v1

// NetworkRequestCustomValidator struct is responsible for validating the NetworkRequest resource
// when it is created, updated, or deleted.
type NetworkRequestCustomValidator struct {
	Client client.Client
}

var _ webhook.CustomValidator = &NetworkRequestCustomValidator{}

// ValidateCreate implements webhook.CustomValidator so a webhook will be registered for the type NetworkRequest.
func (v *NetworkRequestCustomValidator) ValidateCreate(ctx context.Context, obj runtime.Object) (admission.Warnings, error) {
	nr, ok := obj.(*v1alpha1.NetworkRequest)
	if !ok {
		return nil, fmt.Errorf("expected a NetworkRequest object but got %T", obj)
	}
	networkrequestlog.Info("Validation for NetworkRequest upon creation", "name", nr.GetName())

	return v.validate(ctx, nr)
}

// ValidateUpdate implements webhook.CustomValidator so a webhook will be registered for the type NetworkRequest.
func (v *NetworkRequestCustomValidator) ValidateUpdate(ctx context.Context, oldObj, newObj runtime.Object) (admission.Warnings, error) {
	nr, ok := newObj.(*v1alpha1.NetworkRequest)
	if !ok {
		return nil, fmt.Errorf("expected a NetworkRequest object for the newObj but got %T", newObj)
	}
	networkrequestlog.Info("Validation for NetworkRequest upon update", "name", nr.GetName())

	return v.validate(ctx, nr)
}

// ValidateDelete implements webhook.CustomValidator so a webhook will be registered for the type NetworkRequest.
func (v *NetworkRequestCustomValidator) ValidateDelete(_ context.Context, obj runtime.Object) (admission.Warnings, error) {
	_, ok := obj.(*v1alpha1.NetworkRequest)
	if !ok {
		return nil, fmt.Errorf("expected a NetworkRequest object but got %T", obj)
	}

	return nil, nil
}

// validate checks every network on its own first and, if all of them are valid,
// checks the request for networks overlapping each other.
func (v *NetworkRequestCustomValidator) validate(ctx context.Context, nr *v1alpha1.NetworkRequest) (admission.Warnings, error) {
	var errs []error
	for i, n := range nr.Spec.Networks {
		if err := iprouter.Validate(n, nil); err != nil {
			errs = append(errs, fmt.Errorf("spec.networks[%d]: %w", i, err))
		}
	}
	if len(errs) == 0 {
		if err := iprouter.ValidateRequest(nr.Spec.Networks, nil); err != nil {
			errs = append(errs, fmt.Errorf("spec.%w", err))
		}
	}
	if err := kerrors.NewAggregate(errs); err != nil {
		return nil, err
	}

	return v.warnings(ctx, nr), nil
}

// warnings reports other NetworkRequests integrated with the same router that use the same
// network name. The router skips all of them, so the request is admitted but flagged.
func (v *NetworkRequestCustomValidator) warnings(ctx context.Context, nr *v1alpha1.NetworkRequest) admission.Warnings {
	if v.Client == nil || nr.Spec.RouterRef == nil {
		return nil
	}

	list := new(v1alpha1.NetworkRequestList)
	if err := v.Client.List(ctx, list, client.InNamespace(nr.Namespace)); err != nil {
		networkrequestlog.Error(err, "Failed to list NetworkRequests")
		return nil
	}

	var warnings admission.Warnings
	for _, other := range list.Items {
		if other.Name == nr.Name || other.Spec.RouterRef == nil || *other.Spec.RouterRef != *nr.Spec.RouterRef {
			continue
		}
		if other.GetRelationName() == nr.GetRelationName() && other.GetNetworkName() == nr.GetNetworkName() {
			warnings = append(warnings, fmt.Sprintf("network name %q is also used by NetworkRequest %s, the router will skip both", nr.GetNetworkName(), other.Name))
		}
	}
	return warnings
}
