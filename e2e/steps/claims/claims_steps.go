package claims

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/nacl/box"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path, token string, body any, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	RegisterIdentity(token, did, userType string)
}

type user struct {
	token   string
	did     string
	boxPub  *[32]byte
	boxPriv *[32]byte
	signKey ed25519.PrivateKey
}

type claimSteps struct {
	tc      TestContext
	users   map[string]*user
	claimID string
	content map[string]any
}

// RegisterSteps registers claim lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &claimSteps{tc: tc, users: make(map[string]*user)}

	ctx.Step(`^an employee "([^"]*)"$`, steps.anEmployee)
	ctx.Step(`^an employer "([^"]*)"$`, steps.anEmployer)
	ctx.Step(`^a user "([^"]*)" with role "([^"]*)"$`, steps.aUserWithRole)

	ctx.Step(`^"([^"]*)" files a "([^"]*)" claim titled "([^"]*)" with issuer "([^"]*)"$`, steps.filesClaim)
	ctx.Step(`^"([^"]*)" files a "([^"]*)" claim titled "([^"]*)" with issuer "([^"]*)" and idempotency key "([^"]*)"$`, steps.filesClaimWithKey)
	ctx.Step(`^"([^"]*)" lists their claims$`, steps.listsClaims)
	ctx.Step(`^"([^"]*)" fetches the claim$`, steps.fetchesClaim)
	ctx.Step(`^"([^"]*)" accepts the claim$`, steps.acceptsClaim)
	ctx.Step(`^"([^"]*)" accepts the claim with the keystore of "([^"]*)"$`, steps.acceptsClaimWithKeystoreOf)
	ctx.Step(`^"([^"]*)" rejects the claim$`, steps.rejectsClaim)

	ctx.Step(`^the response should carry the same claim id$`, steps.sameClaimID)
	ctx.Step(`^the list should contain the claim$`, steps.listShouldContainClaim)
	ctx.Step(`^the list should be empty$`, steps.listShouldBeEmpty)
	ctx.Step(`^the career should hold a credential for "([^"]*)" signed by "([^"]*)"$`, steps.careerShouldHoldCredential)
}

func (s *claimSteps) register(name, userType string, u *user) {
	u.token = name + "-token"
	s.users[name] = u
	s.tc.RegisterIdentity(u.token, u.did, userType)
}

func (s *claimSteps) anEmployee(ctx context.Context, name string) error {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	s.register(name, "EMPLOYEE", &user{
		did:     "did:attesto:employee:" + hex.EncodeToString(pub[:]),
		boxPub:  pub,
		boxPriv: priv,
	})
	return nil
}

func (s *claimSteps) anEmployer(ctx context.Context, name string) error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	s.register(name, "EMPLOYER", &user{
		did:     "did:attesto:employer:" + name,
		signKey: priv,
	})
	return nil
}

func (s *claimSteps) aUserWithRole(ctx context.Context, name, role string) error {
	s.register(name, role, &user{did: "did:attesto:user:" + name})
	return nil
}

func (s *claimSteps) user(name string) (*user, error) {
	u, ok := s.users[name]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", name)
	}
	return u, nil
}

func (s *claimSteps) filesClaim(ctx context.Context, holder, careerType, title, issuer string) error {
	return s.file(holder, careerType, title, issuer, nil)
}

func (s *claimSteps) filesClaimWithKey(ctx context.Context, holder, careerType, title, issuer, key string) error {
	return s.file(holder, careerType, title, issuer, map[string]string{"Idempotency-Key": key})
}

func (s *claimSteps) file(holder, careerType, title, issuer string, headers map[string]string) error {
	h, err := s.user(holder)
	if err != nil {
		return err
	}
	i, err := s.user(issuer)
	if err != nil {
		return err
	}
	content := map[string]any{"employer": issuer, "position": title, "years": 3}
	if err := s.tc.Do(http.MethodPost, "/claims", h.token, map[string]any{
		"issuer":      i.did,
		"title":       title,
		"content":     content,
		"career_type": careerType,
	}, headers); err != nil {
		return err
	}

	if s.tc.GetLastResponseStatus() == http.StatusCreated && s.claimID == "" {
		id, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.claimID = fmt.Sprint(id)
		s.content = content
	}
	return nil
}

func (s *claimSteps) listsClaims(ctx context.Context, name string) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodGet, "/claims", u.token, nil, nil)
}

func (s *claimSteps) fetchesClaim(ctx context.Context, name string) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodGet, "/claims/"+s.claimID, u.token, nil, nil)
}

func (s *claimSteps) acceptsClaim(ctx context.Context, name string) error {
	return s.acceptsClaimWithKeystoreOf(ctx, name, name)
}

func (s *claimSteps) acceptsClaimWithKeystoreOf(ctx context.Context, name, keyOwner string) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	owner, err := s.user(keyOwner)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPatch, "/claims/"+s.claimID, u.token, map[string]any{
		"status": "ACCEPTED",
		"keystore": map[string]string{
			"did":      owner.did,
			"priv_key": hex.EncodeToString(owner.signKey.Seed()),
		},
	}, nil)
}

func (s *claimSteps) rejectsClaim(ctx context.Context, name string) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	return s.tc.Do(http.MethodPatch, "/claims/"+s.claimID, u.token, map[string]any{"status": "REJECTED"}, nil)
}

func (s *claimSteps) sameClaimID(ctx context.Context) error {
	id, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	if fmt.Sprint(id) != s.claimID {
		return fmt.Errorf("expected claim id %s but got %v", s.claimID, id)
	}
	return nil
}

func (s *claimSteps) listedClaims() ([]map[string]any, error) {
	var body struct {
		Claims []map[string]any `json:"claims"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal list: %w", err)
	}
	return body.Claims, nil
}

func (s *claimSteps) listShouldContainClaim(ctx context.Context) error {
	claims, err := s.listedClaims()
	if err != nil {
		return err
	}
	for _, c := range claims {
		if c["id"] == s.claimID {
			return nil
		}
	}
	return fmt.Errorf("claim %s not in list: %s", s.claimID, string(s.tc.GetLastResponseBody()))
}

func (s *claimSteps) listShouldBeEmpty(ctx context.Context) error {
	claims, err := s.listedClaims()
	if err != nil {
		return err
	}
	if len(claims) != 0 {
		return fmt.Errorf("expected no claims, got %d", len(claims))
	}
	return nil
}

func (s *claimSteps) career() (map[string]any, error) {
	raw, err := s.tc.GetResponseField("career")
	if err != nil {
		return nil, err
	}
	career, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("career is not an object: %v", raw)
	}
	return career, nil
}

func (s *claimSteps) careerShouldHoldCredential(ctx context.Context, holder, issuer string) error {
	h, err := s.user(holder)
	if err != nil {
		return err
	}
	i, err := s.user(issuer)
	if err != nil {
		return err
	}
	career, err := s.career()
	if err != nil {
		return err
	}
	sealed, err := base64.StdEncoding.DecodeString(fmt.Sprint(career["credential"]))
	if err != nil {
		return fmt.Errorf("credential is not base64: %w", err)
	}
	token, ok := box.OpenAnonymous(nil, sealed, h.boxPub, h.boxPriv)
	if !ok {
		return fmt.Errorf("holder could not open the sealed credential")
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(string(token), claims, func(*jwt.Token) (any, error) {
		return i.signKey.Public(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return fmt.Errorf("credential signature did not verify: %w", err)
	}
	if claims["iss"] != i.did || claims["sub"] != h.did {
		return fmt.Errorf("unexpected iss/sub: %v/%v", claims["iss"], claims["sub"])
	}
	vc, _ := claims["vc"].(map[string]any)
	subject, _ := vc["credentialSubject"].(map[string]any)
	for k, v := range s.content {
		if fmt.Sprint(subject[k]) != fmt.Sprint(v) {
			return fmt.Errorf("credential subject %s = %v, want %v", k, subject[k], v)
		}
	}
	return nil
}
