package lockfile_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ryanlack616/howell-brain/pkg/lockfile"
)

var _ = Describe("Lock", func() {
	var (
		lockPath  string
		ownerPath string
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		lockPath = filepath.Join(dir, "howell.lock")
		ownerPath = filepath.Join(dir, "daemon.json")
	})

	It("refuses a second holder until the first releases", func() {
		first, err := lockfile.Acquire(lockPath, ownerPath)
		Expect(err).NotTo(HaveOccurred())

		_, err = lockfile.Acquire(lockPath, ownerPath)
		Expect(err).To(MatchError(lockfile.ErrLocked))

		Expect(first.Release()).To(Succeed())

		second, err := lockfile.Acquire(lockPath, ownerPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Release()).To(Succeed())
	})

	It("names the recorded owner in the refusal", func() {
		first, err := lockfile.Acquire(lockPath, ownerPath)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(first.Release)

		Expect(first.SaveOwner(&lockfile.Owner{Machine: "stullatlas-a1b2c3", APIURL: "http://localhost:7777"})).To(Succeed())

		_, err = lockfile.Acquire(lockPath, ownerPath)
		Expect(err).To(MatchError(lockfile.ErrLocked))
		Expect(err.Error()).To(ContainSubstring("stullatlas-a1b2c3"))
	})

	It("saves and loads the owner record", func() {
		l, err := lockfile.Acquire(lockPath, ownerPath)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(l.Release)

		Expect(l.SaveOwner(&lockfile.Owner{Machine: "claudehowell-00ff00"})).To(Succeed())

		owner, err := lockfile.LoadOwner(ownerPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(owner).NotTo(BeNil())
		Expect(owner.PID).To(Equal(os.Getpid()))
		Expect(owner.Machine).To(Equal("claudehowell-00ff00"))
		Expect(owner.Version).To(Equal(1))
		Expect(owner.StartedAt).NotTo(BeZero())
	})

	It("clears the owner record on release", func() {
		l, err := lockfile.Acquire(lockPath, ownerPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.SaveOwner(&lockfile.Owner{Machine: "m"})).To(Succeed())
		Expect(l.Release()).To(Succeed())

		owner, err := lockfile.LoadOwner(ownerPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(owner).To(BeNil())
	})

	It("treats a nil lock release as a no-op", func() {
		var l *lockfile.Lock
		Expect(l.Release()).To(Succeed())
	})
})
