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
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
	"github.com/ironcore-dev/ip-router-operator/internal/iprouter"
	"github.com/ironcore-dev/ip-router-operator/internal/relation"
)

var _ = Describe("NetworkRequest Controller", func() {
	const routerName = "nr-router"

	var (
		recorder   *record.FakeRecorder
		reconciler *NetworkRequestReconciler
	)

	BeforeEach(func() {
		recorder = record.NewFakeRecorder(100)
		reconciler = &NetworkRequestReconciler{
			Client:          k8sClient,
			Scheme:          k8sClient.Scheme(),
			Recorder:        recorder,
			Role:            role(iprouter.Leader),
			RequeueInterval: time.Minute,
		}
	})

	AfterEach(func() {
		list := &v1alpha1.NetworkRequestList{}
		Expect(k8sClient.List(ctx, list, client.InNamespace(metav1.NamespaceDefault))).To(Succeed())
		for i := range list.Items {
			nr := &list.Items[i]
			controllerutil.RemoveFinalizer(nr, v1alpha1.FinalizerName)
			Expect(k8sClient.Update(ctx, nr)).To(Succeed())
			Expect(client.IgnoreNotFound(k8sClient.Delete(ctx, nr))).To(Succeed())
		}
		Expect(k8sClient.DeleteAllOf(ctx, &corev1.ConfigMap{}, client.InNamespace(metav1.NamespaceDefault))).To(Succeed())
	})

	newRequest := func(name string, networks ...v1alpha1.Network) *v1alpha1.NetworkRequest {
		nr := &v1alpha1.NetworkRequest{
			ObjectMeta: metav1.ObjectMeta{
				Name:      name,
				Namespace: metav1.NamespaceDefault,
			},
			Spec: v1alpha1.NetworkRequestSpec{
				RouterRef: ptr.To(routerName),
				Networks:  networks,
			},
		}
		Expect(k8sClient.Create(ctx, nr)).To(Succeed())
		return nr
	}

	relationKey := func(requirer string) client.ObjectKey {
		return client.ObjectKey{
			Name:      relation.ConfigMapName(v1alpha1.DefaultRelationName, routerName, requirer),
			Namespace: metav1.NamespaceDefault,
		}
	}

	Context("When reconciling a valid NetworkRequest", func() {
		const name = "core"
		key := types.NamespacedName{Name: name, Namespace: metav1.NamespaceDefault}

		It("Should join the router and publish the networks", func() {
			newRequest(name, v1alpha1.Network{Network: "10.0.1.0/24", Gateway: "10.0.1.1"})

			res, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(BeNumerically(">=", time.Minute))

			cm := &corev1.ConfigMap{}
			Expect(k8sClient.Get(ctx, relationKey(name), cm)).To(Succeed())
			Expect(cm.Labels).To(HaveKeyWithValue(v1alpha1.RequirerLabel, name))
			Expect(cm.Labels).To(HaveKeyWithValue(v1alpha1.ProviderLabel, routerName))
			Expect(cm.Data).To(HaveKeyWithValue(name+".network-name", name))
			Expect(cm.Data).To(HaveKeyWithValue(name+".networks", `[{"network":"10.0.1.0/24","gateway":"10.0.1.1"}]`))

			nr := &v1alpha1.NetworkRequest{}
			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			Expect(nr.Status.NetworkName).To(Equal(name))
			Expect(nr.Status.RoutingTable).To(BeEmpty())
			cond := meta.FindStatusCondition(nr.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionTrue))
			Expect(recorder.Events).To(Receive(ContainSubstring("NetworksRequested")))

			By("Publishing the routing table from the router")
			router := &v1alpha1.Router{ObjectMeta: metav1.ObjectMeta{Name: routerName, Namespace: metav1.NamespaceDefault}}
			Expect(k8sClient.Create(ctx, router)).To(Succeed())
			DeferCleanup(func() {
				Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(router), router)).To(Succeed())
				controllerutil.RemoveFinalizer(router, v1alpha1.FinalizerName)
				Expect(k8sClient.Update(ctx, router)).To(Succeed())
				Expect(client.IgnoreNotFound(k8sClient.Delete(ctx, router))).To(Succeed())
			})
			_, err = reconcileTimes(&RouterReconciler{
				Client:          k8sClient,
				Scheme:          k8sClient.Scheme(),
				Recorder:        record.NewFakeRecorder(100),
				Role:            role(iprouter.Leader),
				RequeueInterval: time.Minute,
			}, client.ObjectKeyFromObject(router), 3)
			Expect(err).NotTo(HaveOccurred())

			_, err = reconcileTimes(reconciler, key, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			Expect(nr.Status.RoutingTable).To(Equal([]v1alpha1.RoutingTableEntry{{
				Name:     name,
				Networks: []v1alpha1.Network{{Network: "10.0.1.0/24", Gateway: "10.0.1.1"}},
			}}))
			Expect(nr.Status.AvailableNetworks).To(Equal([]v1alpha1.Network{{Network: "10.0.1.0/24", Gateway: "10.0.1.1"}}))
		})

		It("Should withdraw the networks and leave the router when deleted", func() {
			newRequest(name, v1alpha1.Network{Network: "10.0.1.0/24", Gateway: "10.0.1.1"})

			_, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(k8sClient.Get(ctx, relationKey(name), &corev1.ConfigMap{})).To(Succeed())

			nr := &v1alpha1.NetworkRequest{}
			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			Expect(k8sClient.Delete(ctx, nr)).To(Succeed())

			_, err = reconcileTimes(reconciler, key, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(apierrors.IsNotFound(k8sClient.Get(ctx, key, &v1alpha1.NetworkRequest{}))).To(BeTrue())
			Expect(apierrors.IsNotFound(k8sClient.Get(ctx, relationKey(name), &corev1.ConfigMap{}))).To(BeTrue())
			Expect(recorder.Events).To(Receive(ContainSubstring("NetworksRequested")))
			Expect(recorder.Events).To(Receive(ContainSubstring("RelationRemoved")))
		})
	})

	Context("When reconciling a NetworkRequest with overlapping networks", func() {
		const name = "overlapping"
		key := types.NamespacedName{Name: name, Namespace: metav1.NamespaceDefault}

		It("Should report the invalid networks and publish nothing", func() {
			newRequest(name,
				v1alpha1.Network{Network: "10.0.0.0/24", Gateway: "10.0.0.1"},
				v1alpha1.Network{Network: "10.0.0.0/25", Gateway: "10.0.0.2"},
			)

			res, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(BeZero())

			nr := &v1alpha1.NetworkRequest{}
			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			cond := meta.FindStatusCondition(nr.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Status).To(Equal(metav1.ConditionFalse))
			Expect(cond.Reason).To(Equal(v1alpha1.InvalidNetworksReason))
			Expect(cond.Message).To(ContainSubstring(string(iprouter.ConflictError)))
			Expect(nr.Status.NetworkName).To(BeEmpty())

			cm := &corev1.ConfigMap{}
			Expect(k8sClient.Get(ctx, relationKey(name), cm)).To(Succeed())
			Expect(cm.Data).NotTo(HaveKey(name + ".networks"))
			Expect(recorder.Events).To(Receive(ContainSubstring("Warning " + v1alpha1.InvalidNetworksReason)))
		})
	})

	Context("When reconciling a NetworkRequest without any relation", func() {
		const name = "lonely"
		key := types.NamespacedName{Name: name, Namespace: metav1.NamespaceDefault}

		It("Should wait for a relation", func() {
			Expect(k8sClient.Create(ctx, &v1alpha1.NetworkRequest{
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: metav1.NamespaceDefault},
				Spec: v1alpha1.NetworkRequestSpec{
					NetworkName: ptr.To("custom"),
					Networks:    []v1alpha1.Network{{Network: "10.0.0.0/24", Gateway: "10.0.0.1"}},
				},
			})).To(Succeed())

			res, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RequeueAfter).To(BeNumerically(">=", time.Minute))

			nr := &v1alpha1.NetworkRequest{}
			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			cond := meta.FindStatusCondition(nr.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Reason).To(Equal(v1alpha1.NoRelationReason))

			By("Integrating the application with a router")
			Expect(k8sClient.Create(ctx, relationConfigMap(routerName, name, nil))).To(Succeed())

			_, err = reconcileTimes(reconciler, key, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			Expect(nr.Status.NetworkName).To(Equal("custom"))
			Expect(meta.IsStatusConditionTrue(nr.Status.Conditions, v1alpha1.ReadyCondition)).To(BeTrue())
		})

		It("Should not request networks when not the leader", func() {
			reconciler.Role = role(iprouter.Follower)
			Expect(k8sClient.Create(ctx, &v1alpha1.NetworkRequest{
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: metav1.NamespaceDefault},
				Spec: v1alpha1.NetworkRequestSpec{
					Networks: []v1alpha1.Network{{Network: "10.0.0.0/24", Gateway: "10.0.0.1"}},
				},
			})).To(Succeed())
			Expect(k8sClient.Create(ctx, relationConfigMap(routerName, name, nil))).To(Succeed())

			_, err := reconcileTimes(reconciler, key, 3)
			Expect(err).NotTo(HaveOccurred())

			nr := &v1alpha1.NetworkRequest{}
			Expect(k8sClient.Get(ctx, key, nr)).To(Succeed())
			cond := meta.FindStatusCondition(nr.Status.Conditions, v1alpha1.ReadyCondition)
			Expect(cond).NotTo(BeNil())
			Expect(cond.Reason).To(Equal(v1alpha1.NotLeaderReason))

			cm := &corev1.ConfigMap{}
			Expect(k8sClient.Get(ctx, relationKey(name), cm)).To(Succeed())
			Expect(cm.Data).To(BeEmpty())
		})
	})
})
