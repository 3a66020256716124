package tabs_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/tabs"
)

var _ = Describe("Projector", func() {
	var (
		reg  *tabs.Registry
		proj *tabs.Projector
		a, b int
	)

	tab := func(id int) *tabs.Tab {
		t, ok := reg.Tab(id)
		Expect(ok).To(BeTrue())
		return t
	}

	BeforeEach(func() {
		reg = tabs.NewRegistry(testPresets)
		proj = tabs.NewProjector(reg)
		a, _ = reg.CreateTab("P300")
		b, _ = reg.CreateTab("N170")
	})

	It("skips pull while no tab exists", func() {
		empty := tabs.NewProjector(tabs.NewRegistry(testPresets))
		Expect(empty.Snapshot()).To(Equal(params.Fields{}))
	})

	It("mirrors the active tab after every SetActive", func() {
		for _, id := range []int{a, b, a, b} {
			reg.SetActive(id)
			Expect(proj.Snapshot()).To(Equal(tab(id).Fields.Fields()))
		}
	})

	It("pushes edits of the active tab", func() {
		tab(b).Fields.Formula.Set("0 ~ 1 + condition")
		Expect(proj.Active().Formula.Get()).To(Equal("0 ~ 1 + condition"))
	})

	It("isolates edits of inactive tabs", func() {
		before := proj.Snapshot()
		otherBefore := tab(b).Fields.Fields()

		tab(a).Fields.Intercept.Set(11)
		tab(a).Fields.Basis.Set("hanning(0.2, 0.3)")

		Expect(proj.Snapshot()).To(Equal(before))
		Expect(tab(b).Fields.Fields()).To(Equal(otherBefore))
		Expect(tab(a).Fields.Intercept.Get()).To(Equal(11.0))
	})

	It("writes edits of the shared set back into the active tab only", func() {
		proj.Active().Contrast.Set(7)
		Expect(tab(b).Fields.Contrast.Get()).To(Equal(7.0))
		Expect(tab(a).Fields.Contrast.Get()).To(Equal(1.0))
	})

	It("does not leak a pulled value into the previously active tab", func() {
		reg.SetActive(a)
		Expect(tab(b).Fields.Fields()).To(Equal(testPresets["N170"]))
		Expect(tab(a).Fields.Fields()).To(Equal(testPresets["P300"]))
	})

	It("notifies the shared set once per changed field on pull", func() {
		notified := 0
		proj.Active().Intercept.Subscribe(func(float64) { notified++ })
		proj.Active().Coding.Subscribe(func(params.Coding) { notified++ })

		reg.SetActive(a)
		Expect(notified).To(Equal(2))
	})

	It("stops following a removed tab", func() {
		removed := tab(b)
		Expect(reg.RemoveTab(b)).To(Succeed())
		Expect(proj.Snapshot()).To(Equal(tab(a).Fields.Fields()))

		removed.Fields.Intercept.Set(123)
		Expect(proj.Active().Intercept.Get()).To(Equal(5.0))
	})
})
