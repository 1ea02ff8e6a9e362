// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

func relationConfigMap(provider, requirer string, data map[string]string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      relation.ConfigMapName(v1alpha1.DefaultRelationName, provider, requirer),
			Namespace: metav1.NamespaceDefault,
			Labels: map[string]string{
				v1alpha1.RelationLabel: v1alpha1.DefaultRelationName,
				v1alpha1.ProviderLabel: provider,
				v1alpha1.RequirerLabel: requirer,
			},
		},
		Data: data,
	}
}

func role(r iprouter.Role) func() iprouter.Role {
	return func() iprouter.Role { return r }
}

var _ = Describe("Router Controller", func() {
	Context("When reconciling a Router with two requirers", func() {
		const name = "test-router"
		key := types.NamespacedName{Name: name, Namespace: metav1.NamespaceDefault}

		var (
			recorder   *record.FakeRecorder
			reconciler *RouterReconciler
		)

		BeforeEach(func() {
			recorder = record.NewFakeRecorder(100)
			reconciler = &RouterReconciler{
				Client:          k8sClient,
				Scheme:          k8sClient.Scheme(),
				Recorder:        recorder,
				Role:            role(iprouter.Leader),
				RequeueInterval: time.Minute,
			}

			By("Creating the relation ConfigMaps of the requirers")
			Expect(k8sClient.Create(ctx, relationConfigMap(name, "access", map[string]string{
				"access.network-name": "access",
				"access.networks":     `[{"network":"10.0.0.0/24","gateway":"10.0.0.1"},{"network":"10.0.1.0/25","gateway":"10.0.1.2"}]`,
			}))).To(Succeed())
			Expect(k8sClient.Create(ctx, relationConfigMap(name, "core", map[string]string{
				"core.network-name": "core",
				"core.networks":     `[{"network":"10.0.1.0/24","gateway":"10.0.1.1"}]`,
			}))).To(Succeed())

			By("Creating the custom resource for the Kind Router")
			Expect(k8sClient.Create(ctx, &v1alpha1.Router{
				ObjectMeta: metav1.ObjectMeta{
					Name:      name,
					Namespace: metav1.NamespaceDefault,
				},
			})).To(Succeed())
		})

		AfterEach(func() {
			By("Cleanup the specific resource instance Router")
			router := &v1alpha1.Router{}
			if err := k8sClient.Get(ctx, key, router); err == nil {
				controllerutil.RemoveFinalizer(router, v1alpha1.FinalizerName)
				Expect(k8sClient.Update(ctx, router)).To(Succeed())
				Expect(client.IgnoreNotFound(k8sClient.Delete(ctx, router))).To(Succeed())
			}
			Expect(k8sClient.DeleteAllOf(ctx, &corev1.ConfigMap{}, client.InNamespace(metav1.NamespaceDefault))).To(Succeed())
		})

		It("Should publish the merged routing table to every relation", func() {
			res, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(BeNumerically(">=", time.Minute))

			router := &v1alpha1.Router{}
			Expect(k8sClient.Get(ctx, key, router)).To(Succeed())
			Expect(controllerutil.ContainsFinalizer(router, v1alpha1.FinalizerName)).To(BeTrue())
			Expect(router.Status.Relations).To(Equal(int32(2)))
			Expect(router.Status.RejectedNetworks).To(Equal(int32(1)))
			Expect(router.Status.RoutingTable).To(HaveLen(2))

			cond := meta.FindStatusCondition(router.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionTrue))
			Expect(cond.Reason).To(Equal(v1alpha1.NetworksRejectedReason))

			By("Verifying the routing table was written to both relations")
			for _, requirer := range []string{"access", "core"} {
				cm := &corev1.ConfigMap{}
				Expect(k8sClient.Get(ctx, client.ObjectKey{
					Name:      relation.ConfigMapName(v1alpha1.DefaultRelationName, name, requirer),
					Namespace: metav1.NamespaceDefault,
				}, cm)).To(Succeed())
				Expect(cm.Data).To(HaveKey(name + ".networks"))
				Expect(cm.Data[name+".networks"]).To(ContainSubstring(`"10.0.0.0/24"`))
			}

			Expect(recorder.Events).To(Receive(ContainSubstring("RoutingTablePublished")))
			Expect(recorder.Events).To(Receive(ContainSubstring(v1alpha1.NetworksRejectedReason)))
		})

		It("Should not publish anything when not the leader", func() {
			reconciler.Role = role(iprouter.Follower)

			_, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())

			router := &v1alpha1.Router{}
			Expect(k8sClient.Get(ctx, key, router)).To(Succeed())
			cond := meta.FindStatusCondition(router.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionFalse))
			Expect(cond.Reason).To(Equal(v1alpha1.NotLeaderReason))
			Expect(router.Status.RoutingTable).To(BeEmpty())

			cm := &corev1.ConfigMap{}
			Expect(k8sClient.Get(ctx, client.ObjectKey{
				Name:      relation.ConfigMapName(v1alpha1.DefaultRelationName, name, "core"),
				Namespace: metav1.NamespaceDefault,
			}, cm)).To(Succeed())
			Expect(cm.Data).NotTo(HaveKey(name + ".networks"))
		})

		It("Should withdraw the routing table when the Router is deleted", func() {
			_, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())

			router := &v1alpha1.Router{}
			Expect(k8sClient.Get(ctx, key, router)).To(Succeed())
			Expect(k8sClient.Delete(ctx, router)).To(Succeed())

			_, err = reconcileTimes(reconciler, key, 1)
			Expect(err).NotTo(HaveOccurred())

			err = k8sClient.Get(ctx, key, &v1alpha1.Router{})
			Expect(apierrors.IsNotFound(err)).To(BeTrue())

			for _, requirer := range []string{"access", "core"} {
				cm := &corev1.ConfigMap{}
				Expect(k8sClient.Get(ctx, client.ObjectKey{
					Name:      relation.ConfigMapName(v1alpha1.DefaultRelationName, name, requirer),
					Namespace: metav1.NamespaceDefault,
				}, cm)).To(Succeed())
				Expect(cm.Data).NotTo(HaveKey(name + ".networks"))
				Expect(cm.Data).To(HaveKey(requirer + ".networks"))
			}
		})
	})

	Context("When a relation ConfigMap changes", func() {
		It("Should enqueue the Router of the provider application", func() {
			router := &v1alpha1.Router{
				ObjectMeta: metav1.ObjectMeta{Name: "mapped-router", Namespace: metav1.NamespaceDefault},
				Spec:       v1alpha1.RouterSpec{AppName: "edge"},
			}
			Expect(k8sClient.Create(ctx, router)).To(Succeed())
			DeferCleanup(func() { Expect(k8sClient.Delete(ctx, router)).To(Succeed()) })

			reconciler := &RouterReconciler{Client: k8sClient}
			reqs := reconciler.configMapToRouters(ctx, relationConfigMap("edge", "core", nil))
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Name).To(Equal("mapped-router"))

			Expect(reconciler.configMapToRouters(ctx, relationConfigMap("other", "core", nil))).To(BeEmpty())
		})
	})
})
