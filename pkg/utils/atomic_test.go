package utils

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WriteFileAtomic", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("creates the file with the given mode", func() {
		path := filepath.Join(dir, "state.json")
		Expect(WriteFileAtomic(path, []byte(`{"a":1}`), 0o600)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"a":1}`))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	})

	It("replaces existing content and leaves no temp files", func() {
		path := filepath.Join(dir, "hot.json")
		Expect(WriteFileAtomic(path, []byte("old"), 0o644)).To(Succeed())
		Expect(WriteFileAtomic(path, []byte("new"), 0o644)).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("new"))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("fails when the directory does not exist", func() {
		Expect(WriteFileAtomic(filepath.Join(dir, "missing", "x"), nil, 0o644)).NotTo(Succeed())
	})
})
