// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package v1alpha1

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/ironcore-dev/ip-router-operator/api/v1alpha1"
)

var _ = Describe("NetworkRequest Webhook", func() {
	var (
		ctx       context.Context
		validator *NetworkRequestCustomValidator
		obj       *v1alpha1.NetworkRequest
	)

	BeforeEach(func() {
		ctx = context.Background()

		scheme := runtime.NewScheme()
		Expect(v1alpha1.AddToScheme(scheme)).To(Succeed())
		validator = &NetworkRequestCustomValidator{
			Client: fake.NewClientBuilder().WithScheme(scheme).WithObjects(&v1alpha1.NetworkRequest{
				ObjectMeta: metav1.ObjectMeta{Name: "existing", Namespace: metav1.NamespaceDefault},
				Spec: v1alpha1.NetworkRequestSpec{
					RouterRef:   ptr.To("router"),
					NetworkName: ptr.To("shared"),
					Networks:    []v1alpha1.Network{{Network: "192.168.0.0/24", Gateway: "192.168.0.1"}},
				},
			}).Build(),
		}

		obj = &v1alpha1.NetworkRequest{
			ObjectMeta: metav1.ObjectMeta{Name: "test", Namespace: metav1.NamespaceDefault},
			Spec: v1alpha1.NetworkRequestSpec{
				RouterRef: ptr.To("router"),
				Networks: []v1alpha1.Network{
					{Network: "10.0.0.0/24", Gateway: "10.0.0.1"},
					{
						Network: "10.0.1.0/24",
						Gateway: "10.0.1.1",
						Routes:  []v1alpha1.Route{{Destination: "0.0.0.0/0", Gateway: "10.0.1.254"}},
					},
				},
			},
		}
	})

	Context("When creating or updating a NetworkRequest", func() {
		It("Should admit valid networks", func() {
			warnings, err := validator.ValidateCreate(ctx, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(BeEmpty())

			warnings, err = validator.ValidateUpdate(ctx, obj.DeepCopy(), obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(BeEmpty())
		})

		It("Should deny networks with a gateway outside of the network", func() {
			obj.Spec.Networks[0].Gateway = "10.1.0.1"
			_, err := validator.ValidateCreate(ctx, obj)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("spec.networks[0]"))
			Expect(err.Error()).To(ContainSubstring("ContainmentError"))
		})

		It("Should report every invalid network", func() {
			obj.Spec.Networks[0].Network = "10.0.0.1/24"
			obj.Spec.Networks[1].Routes[0].Gateway = ""
			_, err := validator.ValidateUpdate(ctx, obj.DeepCopy(), obj)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("spec.networks[0]"))
			Expect(err.Error()).To(ContainSubstring("spec.networks[1]"))
		})

		It("Should deny overlapping networks", func() {
			obj.Spec.Networks[1] = v1alpha1.Network{Network: "10.0.0.0/16", Gateway: "10.0.2.1"}
			_, err := validator.ValidateCreate(ctx, obj)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("ConflictError"))
		})

		It("Should warn about network names used by other requests of the same router", func() {
			obj.Spec.NetworkName = ptr.To("shared")
			warnings, err := validator.ValidateCreate(ctx, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0]).To(ContainSubstring("existing"))

			obj.Spec.RouterRef = ptr.To("other-router")
			warnings, err = validator.ValidateCreate(ctx, obj)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(BeEmpty())
		})

		It("Should reject objects of other kinds", func() {
			_, err := validator.ValidateCreate(ctx, &corev1.ConfigMap{})
			Expect(err).To(HaveOccurred())
			_, err = validator.ValidateDelete(ctx, &corev1.ConfigMap{})
			Expect(err).To(HaveOccurred())
		})
	})
})
