package storage_test

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/basit/pitchvault-backend/models"
	"github.com/basit/pitchvault-backend/storage"
)

var _ = Describe("bundle files", func() {
	var (
		resolver *storage.Resolver
		pitchID  uuid.UUID
	)

	BeforeEach(func() {
		resolver = storage.NewResolver(GinkgoT().TempDir())
		pitchID = uuid.New()
	})

	It("saves, lists and deletes files", func() {
		n, err := resolver.SaveFile(pitchID, "index.html", strings.NewReader("<p>x</p>"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(8)))
		_, err = resolver.SaveFile(pitchID, "/assets/logo.png", strings.NewReader("png"))
		Expect(err).NotTo(HaveOccurred())

		files, err := resolver.ListFiles(pitchID)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(Equal([]string{"assets/logo.png", "index.html"}))

		p, err := resolver.Resolve(pitchID, "index.html")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.ReadFile(p)).To(Equal([]byte("<p>x</p>")))

		Expect(resolver.DeleteAll(pitchID)).To(Succeed())
		files, err = resolver.ListFiles(pitchID)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(BeEmpty())
	})

	It("refuses to write outside the root", func() {
		_, err := resolver.SaveFile(pitchID, "../escape.txt", strings.NewReader("x"))
		Expect(err).To(MatchError(storage.ErrInvalidPath))
		_, err = resolver.SaveFile(pitchID, "", strings.NewReader("x"))
		Expect(err).To(MatchError(storage.ErrInvalidPath))
	})

	It("refuses to write through a symlinked directory", func() {
		outside := GinkgoT().TempDir()
		root := resolver.Root(pitchID)
		Expect(os.MkdirAll(root, 0o755)).To(Succeed())
		Expect(os.Symlink(outside, filepath.Join(root, "out"))).To(Succeed())

		_, err := resolver.SaveFile(pitchID, "out/evil.html", strings.NewReader("x"))
		Expect(err).To(MatchError(storage.ErrInvalidPath))
		Expect(filepath.Join(outside, "evil.html")).NotTo(BeAnExistingFile())
	})

	DescribeTable("DetectFileType",
		func(files []string, wantType models.FileType, wantEntry string) {
			ft, entry := storage.DetectFileType(files)
			Expect(ft).To(Equal(wantType))
			Expect(entry).To(Equal(wantEntry))
		},
		Entry("index.html wins", []string{"a.html", "deck.pdf", "index.html"}, models.FileTypeHTML, "index.html"),
		Entry("first html", []string{"b.htm", "c.html"}, models.FileTypeHTML, "b.htm"),
		Entry("pdf over images", []string{"cover.png", "deck.pdf"}, models.FileTypePDF, "deck.pdf"),
		Entry("image", []string{"notes.txt", "shot.JPG"}, models.FileTypeImage, "shot.JPG"),
		Entry("anything else", []string{"data.csv"}, models.FileTypeOther, "data.csv"),
		Entry("empty", []string{}, models.FileTypeOther, ""),
	)
})
