package tabs_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/erpsim/internal/params"
	"github.com/san-kum/erpsim/internal/tabs"
)

type presetMap map[string]params.Fields

func (m presetMap) Preset(name string) (params.Fields, error) {
	f, ok := m[name]
	if !ok {
		return params.Fields{}, fmt.Errorf("no preset %q", name)
	}
	return f, nil
}

var testPresets = presetMap{
	"P300": {Intercept: 5, Contrast: 1, Basis: "p300", Formula: "0 ~ 1 + condition", Coding: params.CodingDummy},
	"N170": {Intercept: -3, Contrast: 2, Basis: "n170", Formula: "0 ~ 1", Projection: "[1, 0.5]", Coding: params.CodingEffects},
}

var _ = Describe("Registry", func() {
	var (
		reg     *tabs.Registry
		changes []tabs.Change
	)

	BeforeEach(func() {
		reg = tabs.NewRegistry(testPresets)
		changes = nil
		reg.Changes().Subscribe(func(c tabs.Change) { changes = append(changes, c) })
	})

	Describe("CreateTab", func() {
		It("assigns increasing ids and activates the new tab", func() {
			a, err := reg.CreateTab("P300")
			Expect(err).NotTo(HaveOccurred())
			b, err := reg.CreateTab("P300")
			Expect(err).NotTo(HaveOccurred())

			Expect(b).To(BeNumerically(">", a))
			Expect(reg.ActiveID()).To(Equal(b))
			Expect(reg.Tabs()).To(HaveLen(2))

			t, ok := reg.Tab(b)
			Expect(ok).To(BeTrue())
			Expect(t.Label).To(Equal("P300"))
			Expect(t.Fields.Fields()).To(Equal(testPresets["P300"]))
		})

		It("announces creation before activation", func() {
			id, _ := reg.CreateTab("N170")
			Expect(changes).To(Equal([]tabs.Change{
				{Kind: tabs.Created, ID: id},
				{Kind: tabs.Activated, ID: id},
			}))
		})

		It("rejects unknown presets", func() {
			_, err := reg.CreateTab("P600")
			Expect(err).To(MatchError(tabs.ErrUnknownPreset))
			Expect(reg.Len()).To(Equal(0))
		})

		It("enforces the tab limit", func() {
			reg = tabs.NewRegistry(testPresets, tabs.WithMaxTabs(2))
			_, _ = reg.CreateTab("P300")
			_, _ = reg.CreateTab("P300")
			_, err := reg.CreateTab("P300")
			Expect(err).To(MatchError(tabs.ErrTooManyTabs))
		})

		It("gives tabs from the same preset independent fields", func() {
			a, _ := reg.CreateTab("P300")
			b, _ := reg.CreateTab("P300")
			ta, _ := reg.Tab(a)
			tb, _ := reg.Tab(b)

			ta.Fields.Intercept.Set(42)
			Expect(tb.Fields.Intercept.Get()).To(Equal(5.0))
		})
	})

	Describe("SetActive", func() {
		It("ignores unknown ids", func() {
			id, _ := reg.CreateTab("P300")
			changes = nil
			Expect(reg.SetActive(99)).To(BeFalse())
			Expect(reg.ActiveID()).To(Equal(id))
			Expect(changes).To(BeEmpty())
		})

		It("does not announce re-activating the active tab", func() {
			id, _ := reg.CreateTab("P300")
			changes = nil
			Expect(reg.SetActive(id)).To(BeTrue())
			Expect(changes).To(BeEmpty())
		})
	})

	Describe("RemoveTab", func() {
		var a, b, c int

		BeforeEach(func() {
			a, _ = reg.CreateTab("P300")
			b, _ = reg.CreateTab("N170")
			c, _ = reg.CreateTab("P300")
		})

		It("activates the previous tab when the active one goes", func() {
			Expect(reg.RemoveTab(c)).To(Succeed())
			Expect(reg.ActiveID()).To(Equal(b))
			Expect(reg.Index(c)).To(Equal(-1))
			_, ok := reg.Tab(c)
			Expect(ok).To(BeFalse())
		})

		It("activates the next tab when the first one goes", func() {
			reg.SetActive(a)
			Expect(reg.RemoveTab(a)).To(Succeed())
			Expect(reg.ActiveID()).To(Equal(b))
		})

		It("keeps the active tab when another one goes", func() {
			Expect(reg.RemoveTab(a)).To(Succeed())
			Expect(reg.ActiveID()).To(Equal(c))
			Expect(changes[len(changes)-1]).To(Equal(tabs.Change{Kind: tabs.Removed, ID: a}))
		})

		It("never reuses ids", func() {
			Expect(reg.RemoveTab(c)).To(Succeed())
			d, err := reg.CreateTab("P300")
			Expect(err).NotTo(HaveOccurred())
			Expect(d).To(BeNumerically(">", c))
		})

		It("refuses unknown ids and the last tab", func() {
			Expect(reg.RemoveTab(99)).To(MatchError(tabs.ErrUnknownTab))
			Expect(reg.RemoveTab(a)).To(Succeed())
			Expect(reg.RemoveTab(b)).To(Succeed())
			Expect(reg.RemoveTab(c)).To(MatchError(tabs.ErrLastTab))
		})
	})

	Describe("Rename", func() {
		It("relabels a tab and keeps its fields", func() {
			id, _ := reg.CreateTab("P300")
			before, _ := reg.Tab(id)

			Expect(reg.Rename(id, "mine")).To(Succeed())
			t, _ := reg.Tab(id)
			Expect(t.Label).To(Equal("mine"))
			Expect(t.Fields).To(BeIdenticalTo(before.Fields))
			Expect(before.Label).To(Equal("P300"))
			Expect(changes[len(changes)-1]).To(Equal(tabs.Change{Kind: tabs.Renamed, ID: id}))
		})

		It("refuses unknown ids", func() {
			Expect(reg.Rename(7, "x")).To(MatchError(tabs.ErrUnknownTab))
		})
	})
})
