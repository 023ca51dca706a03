package cliui_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/cliui"
)

var _ = Describe("cliui", func() {
	It("formats short and long durations", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})

	It("marks failures", func() {
		Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
		Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
	})

	It("colors urgency levels", func() {
		Expect(cliui.Level("URGENT")).To(ContainSubstring("URGENT"))
	})

	It("renders unknown levels as plain values", func() {
		Expect(cliui.Level("SOMEDAY")).To(ContainSubstring("SOMEDAY"))
	})
})
