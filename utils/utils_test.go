package utils_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/basit/pitchvault-backend/utils"
)

var _ = Describe("sanitizing", func() {
	It("strips markup from plain text and keeps entities readable", func() {
		Expect(utils.SanitizeText("  <b>Q3</b> Growth &amp; Plans <script>x()</script> ")).To(Equal("Q3 Growth & Plans"))
	})

	It("keeps safe formatting in rich text", func() {
		out := utils.SanitizeRich(`<p onclick="x()">Hi <a href="javascript:alert(1)">there</a></p>`)
		Expect(out).To(ContainSubstring("<p>"))
		Expect(out).NotTo(ContainSubstring("onclick"))
		Expect(out).NotTo(ContainSubstring("javascript:"))
	})
})

var _ = Describe("responses", func() {
	It("wraps data in the envelope", func() {
		gin.SetMode(gin.TestMode)
		r := gin.New()
		r.GET("/ok", func(c *gin.Context) { utils.Success(c, gin.H{"n": 1}) })
		r.GET("/bad", func(c *gin.Context) { utils.Error(c, http.StatusBadRequest, 40001, "bad") })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		Expect(w.Body.String()).To(MatchJSON(`{"code":0,"message":"success","data":{"n":1}}`))

		w = httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(MatchJSON(`{"code":40001,"message":"bad"}`))
	})
})
