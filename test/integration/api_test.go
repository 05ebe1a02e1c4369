// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/talentdesk/backoffice/internal/mail"
)

// client is a browser-like API client that keeps the session cookie.
type client struct {
	http *http.Client
}

func newClient() *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{http: &http.Client{Jar: jar}}
}

func (c *client) call(method, path string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	out := map[string]any{}
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out)).To(Succeed(), string(raw))
	}
	return resp.StatusCode, out
}

func errorCodeOf(body map[string]any) string {
	detail, ok := body["error"].(map[string]any)
	Expect(ok).To(BeTrue(), "no error object in %v", body)
	return detail["code"].(string)
}

var linkPattern = regexp.MustCompile(`/(?:password/reset|activation)/([^/\s"<]+)/([^/\s"<]+)`)

// lastLink returns the key and token of the newest mail of kind.
func lastLink(kind mail.Kind) (string, string) {
	msgs := env.mailer.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind != kind {
			continue
		}
		m := linkPattern.FindStringSubmatch(msgs[i].Text)
		Expect(m).To(HaveLen(3), "no link in %q", msgs[i].Text)
		return m[1], m[2]
	}
	Fail("no " + string(kind) + " mail was sent")
	return "", ""
}

var _ = Describe("Back-office API", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx)
	})

	Describe("staff sign-in", func() {
		It("opens a session, serves the role's services and closes it", func() {
			c := newClient()

			status, body := c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "rita", "password": "rita-password",
			})
			Expect(status).To(Equal(http.StatusOK), "%v", body)
			Expect(body["redirectTo"]).To(HaveKeyWithValue("code", "recruitment:jobs"))

			status, body = c.call(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["profile"]).To(HaveKeyWithValue("email", "rita@example.com"))

			status, body = c.call(http.MethodGet, "/auth/services", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["services"]).To(HaveLen(1))

			status, _ = c.call(http.MethodDelete, "/auth/logout", nil)
			Expect(status).To(Equal(http.StatusNoContent))

			status, _ = c.call(http.MethodGet, "/auth/me", nil)
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("lists the whole catalog without a session", func() {
			status, body := newClient().call(http.MethodGet, "/auth/services", nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body["services"]).To(HaveLen(3))
		})

		It("makes a seeded bootstrap account choose its password first", func() {
			c := newClient()

			status, body := c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "admin", "password": "bootstrap-pass",
			})
			Expect(status).To(Equal(http.StatusUnprocessableEntity), "%v", body)
			Expect(body).To(HaveKeyWithValue("code", "AUTH_PASSWORD_RESET_REQUIRED"))
			key, token := body["key"].(string), body["token"].(string)

			status, body = c.call(http.MethodPut, "/auth/password/reset/"+key+"/"+token, map[string]string{
				"password": "admin-chosen-1", "confirmPassword": "admin-chosen-1",
			})
			Expect(status).To(Equal(http.StatusOK), "%v", body)
			Expect(body["account"]).To(HaveKeyWithValue("status", "ACTIVE"))
			Expect(body["redirectTo"]).To(HaveKeyWithValue("path", "https://bo.example.com/login"))

			By("refusing the same link twice")
			status, body = c.call(http.MethodPut, "/auth/password/reset/"+key+"/"+token, map[string]string{
				"password": "admin-chosen-2", "confirmPassword": "admin-chosen-2",
			})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorCodeOf(body)).To(HavePrefix("TOKEN_"))

			status, body = c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "admin", "password": "admin-chosen-1",
			})
			Expect(status).To(Equal(http.StatusOK), "%v", body)

			var lastLogin *string
			Expect(env.pool.QueryRow(ctx,
				"SELECT last_login_at::text FROM accounts WHERE username = $1", "admin",
			).Scan(&lastLogin)).To(Succeed())
			Expect(lastLogin).NotTo(BeNil())
		})

		It("locks an account after repeated failures", func() {
			c := newClient()
			for i := 0; i < 4; i++ {
				status, _ := c.call(http.MethodPost, "/auth/login", map[string]string{
					"username": "rita", "password": "wrong-password",
				})
				Expect(status).To(Equal(http.StatusForbidden))
			}

			status, body := c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "rita", "password": "rita-password",
			})
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(errorCodeOf(body)).To(Equal("AUTH_CAPTCHA_REQUIRED"))
		})
	})

	Describe("password reset by email", func() {
		It("emails a link that sets a new password", func() {
			c := newClient()

			status, _ := c.call(http.MethodPost, "/auth/password/reset", map[string]string{"username": "rita"})
			Expect(status).To(Equal(http.StatusCreated))

			key, token := lastLink(mail.KindPasswordReset)
			status, body := c.call(http.MethodPut, "/auth/password/reset/"+key+"/"+token, map[string]string{
				"password": "rita-new-pass", "confirmPassword": "rita-new-pass",
			})
			Expect(status).To(Equal(http.StatusOK), "%v", body)

			status, _ = c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "rita", "password": "rita-password",
			})
			Expect(status).To(Equal(http.StatusForbidden))
			status, _ = c.call(http.MethodPost, "/auth/login", map[string]string{
				"username": "rita", "password": "rita-new-pass",
			})
			Expect(status).To(Equal(http.StatusOK))
		})

		It("rejects unknown usernames", func() {
			status, body := newClient().call(http.MethodPost, "/auth/password/reset", map[string]string{"username": "nobody"})
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorCodeOf(body)).To(Equal("RESET_ACCOUNT_NOT_FOUND"))
		})
	})

	Describe("candidate registration", func() {
		register := func(c *client, username string) (int, map[string]any) {
			status, challenge := c.call(http.MethodGet, "/auth/request", nil)
			Expect(status).To(Equal(http.StatusOK))

			return c.call(http.MethodPost, "/candidate/register", map[string]string{
				"username":        username,
				"password":        "candidate-pass",
				"confirmPassword": "candidate-pass",
				"fullName":        "Casey Candidate",
				"email":           username + "@example.org",
				"birthdate":       "1995-04-12",
				"captchaToken":    challenge["token"].(string),
				"captchaAnswer":   captchaAnswer,
			})
		}

		It("creates the account only on activation", func() {
			c := newClient()

			status, body := register(c, "casey")
			Expect(status).To(Equal(http.StatusCreated), "%v", body)
			Expect(body).To(HaveKeyWithValue("status", "NEW"))

			var count int
			Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts WHERE username = 'casey'").Scan(&count)).To(Succeed())
			Expect(count).To(BeZero())

			key, token := lastLink(mail.KindActivation)
			status, body = c.call(http.MethodPost, "/candidate/activation/"+key+"/"+token, nil)
			Expect(status).To(Equal(http.StatusCreated), "%v", body)
			Expect(body["account"]).To(HaveKeyWithValue("category", "CANDIDATE"))

			status, _ = c.call(http.MethodPost, "/candidate/activation/"+key+"/"+token, nil)
			Expect(status).To(Equal(http.StatusBadRequest))

			status, body = c.call(http.MethodPost, "/auth/candidate/login", map[string]string{
				"username": "casey", "password": "candidate-pass",
			})
			Expect(status).To(Equal(http.StatusOK), "%v", body)
			Expect(body["redirectTo"]).To(HaveKeyWithValue("code", "candidate:applications"))
		})

		It("refuses a username a staff account already holds", func() {
			status, body := register(newClient(), "rita")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(errorCodeOf(body)).To(Equal("REGISTRATION_USERNAME_TAKEN"))
		})
	})

	Describe("seeding", func() {
		It("is idempotent against the real schema", func() {
			manifestCount := func(table string) int {
				var n int
				Expect(env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)).To(Succeed())
				return n
			}
			before := []int{manifestCount("services"), manifestCount("role_permissions"), manifestCount("accounts")}

			resetDatabase(ctx)
			Expect([]int{manifestCount("services"), manifestCount("role_permissions"), manifestCount("accounts")}).To(Equal(before))
		})
	})
})
