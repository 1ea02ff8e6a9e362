// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
)

// Jitter returns a duration between d and 1.1*d, so that objects created at the
// same time do not get requeued at the same time.
func Jitter(d time.Duration) time.Duration {
	return wait.Jitter(d, 0.1)
}

// watchFilter returns a predicate accepting objects labelled with the given watch filter value.
// An empty value accepts all objects.
func watchFilter(value string) (predicate.Predicate, error) {
	labelSelector := metav1.LabelSelector{}
	if value != "" {
		labelSelector.MatchLabels = map[string]string{v1alpha1.WatchLabel: value}
	}

	filter, err := predicate.LabelSelectorPredicate(labelSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to create label selector predicate: %w", err)
	}
	return filter, nil
}

// relationFilter accepts relation ConfigMaps only.
var relationFilter = predicate.NewPredicateFuncs(func(obj client.Object) bool {
	_, ok := obj.GetLabels()[v1alpha1.RelationLabel]
	return ok
})

// setReady sets the Ready condition and reports whether it changed.
func setReady(conds *[]metav1.Condition, generation int64, status metav1.ConditionStatus, reason, message string) bool {
	return meta.SetStatusCondition(conds, metav1.Condition{
		Type:               v1alpha1.ReadyCondition,
		Status:             status,
		Reason:             reason,
		Message:            message,
		ObservedGeneration: generation,
	})
}

// initConditions initializes the Ready condition if no condition is set yet.
func initConditions(conds *[]metav1.Condition) bool {
	if len(*conds) > 0 {
		return false
	}
	return setReady(conds, 0, metav1.ConditionUnknown, v1alpha1.ReconcilePendingReason, "Starting reconciliation")
}

// roleOrFollower calls fn, treating a missing function as [iprouter.Follower].
func roleOrFollower(fn func() iprouter.Role) iprouter.Role {
	if fn == nil {
		return iprouter.Follower
	}
	return fn()
}
