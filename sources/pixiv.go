/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/moebot-io/moebot/config"
	"github.com/moebot-io/moebot/internal/cache"
	"github.com/moebot-io/moebot/internal/request"
	"github.com/moebot-io/moebot/model"
)

const pixivName = "pixiv"

// Public app client credentials used by the pixiv mobile apps for the OAuth
// refresh grant.
const (
	pixivClientID     = "MOBrBDS8blbauoSck0ZfDbtuzpyT"
	pixivClientSecret = "lsACyCD94FhDUtGTXi3QzcFE2uU1hqtDaKeqrdwj"
)

const accessTokenCacheKey = "pixiv:access_token"

// pixivAuthenticator is the capability interface over the two mutually
// exclusive credential forms. Exactly one implementation is active per
// configured source.
type pixivAuthenticator interface {
	// authorize decorates an API request with credentials, refreshing
	// them first when needed.
	authorize(ctx context.Context, req *http.Request) error

	// appAPI reports whether requests go to the app API (OAuth) or the
	// web ajax API (session cookie).
	appAPI() bool
}

// PixivSource is the per-artist connector. For each configured artist it
// lists that artist's works newest first, truncated to the per-artist
// limit; with no artist list it falls back to the recommended feed (OAuth
// only). With no credentials it yields nothing, silently.
type PixivSource struct {
	auth    pixivAuthenticator
	artists []string

	appEndpoint   string // app-api host (OAuth credential)
	webEndpoint   string // www host (session-cookie credential)
	oauthEndpoint string
}

// NewPixivSource builds the connector from configuration. The credential
// union resolves here: refresh token wins, then session cookie, then
// unconfigured (a nil authenticator).
func NewPixivSource(cnf config.PixivConfig, tokens cache.Cache) *PixivSource {
	s := &PixivSource{
		artists:       cnf.Artists,
		appEndpoint:   "https://app-api.pixiv.net",
		webEndpoint:   "https://www.pixiv.net",
		oauthEndpoint: "https://oauth.secure.pixiv.net",
	}

	switch {
	case cnf.RefreshToken != "":
		s.auth = &refreshTokenAuth{refreshToken: cnf.RefreshToken, tokens: tokens, source: s}
	case cnf.SessionCookie != "":
		s.auth = &sessionCookieAuth{cookie: cnf.SessionCookie}
	}
	return s
}

func (p *PixivSource) Name() string {
	return pixivName
}

// ListCandidates yields nothing (and no error) when no credential is
// configured.
func (p *PixivSource) ListCandidates(ctx context.Context, limit int) ([]model.Asset, error) {
	if p.auth == nil {
		return nil, nil
	}

	if p.auth.appAPI() {
		return p.listAppAPI(ctx, limit)
	}
	return p.listWebAPI(ctx, limit)
}

type pixivIllust struct {
	ID        int64 `json:"id"`
	ImageURLs struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"image_urls"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

type pixivIllustsPage struct {
	Illusts []pixivIllust `json:"illusts"`
}

func (p *PixivSource) listAppAPI(ctx context.Context, limit int) ([]model.Asset, error) {
	var pool []pixivIllust

	if len(p.artists) == 0 {
		page, err := p.fetchIllusts(ctx, p.appEndpoint+"/v1/illust/recommended?content_type=illust")
		if err != nil {
			return nil, err
		}
		pool = truncateIllusts(page.Illusts, limit)
	} else {
		for _, artist := range p.artists {
			listURL := fmt.Sprintf("%s/v1/user/illusts?user_id=%s&type=illust", p.appEndpoint, url.QueryEscape(artist))
			page, err := p.fetchIllusts(ctx, listURL)
			if err != nil {
				logrus.Warnf("pixiv: listing failed for artist %s: %v", artist, err)
				continue
			}
			pool = append(pool, truncateIllusts(page.Illusts, limit)...)
		}
	}

	var assets []model.Asset
	for _, illust := range pool {
		imageURL := illust.ImageURLs.Large
		if imageURL == "" {
			imageURL = illust.ImageURLs.Medium
		}
		if imageURL == "" {
			continue
		}

		payload, err := p.download(ctx, imageURL)
		if err != nil {
			logrus.Warnf("pixiv: download failed for illust %d: %v", illust.ID, err)
			continue
		}

		tags := make([]string, 0, len(illust.Tags))
		for _, tag := range illust.Tags {
			tags = append(tags, tag.Name)
		}

		assets = append(assets, model.Asset{
			SourceID:   strconv.FormatInt(illust.ID, 10),
			SourceName: pixivName,
			Payload:    payload,
			Tags:       tags,
			Author:     illust.User.Name,
		})
	}
	return assets, nil
}

func (p *PixivSource) fetchIllusts(ctx context.Context, listURL string) (*pixivIllustsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	if err := p.auth.authorize(ctx, req); err != nil {
		return nil, err
	}

	var page pixivIllustsPage
	resp, err := request.Call(req, &page)
	if err != nil {
		return nil, errors.Wrap(err, "pixiv listing failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pixiv listing failed: status %d", resp.StatusCode)
	}

	// Newest works first regardless of the API's paging order.
	sort.Slice(page.Illusts, func(i, j int) bool { return page.Illusts[i].ID > page.Illusts[j].ID })
	return &page, nil
}

// listWebAPI walks artist profiles through the logged-in ajax API. The
// profile endpoint returns illust IDs keyed in an object; the newest IDs
// are fetched individually.
func (p *PixivSource) listWebAPI(ctx context.Context, limit int) ([]model.Asset, error) {
	if len(p.artists) == 0 {
		logrus.Warn("pixiv: session-cookie credential requires an artist list; yielding nothing")
		return nil, nil
	}

	var assets []model.Asset
	for _, artist := range p.artists {
		ids, err := p.fetchProfileIllustIDs(ctx, artist)
		if err != nil {
			logrus.Warnf("pixiv: profile listing failed for artist %s: %v", artist, err)
			continue
		}
		if len(ids) > limit {
			ids = ids[:limit]
		}

		for _, id := range ids {
			asset, err := p.fetchAjaxIllust(ctx, id)
			if err != nil {
				logrus.Warnf("pixiv: illust fetch failed for %d: %v", id, err)
				continue
			}
			assets = append(assets, *asset)
		}
	}
	return assets, nil
}

func (p *PixivSource) fetchProfileIllustIDs(ctx context.Context, artist string) ([]int64, error) {
	profileURL := fmt.Sprintf("%s/ajax/user/%s/profile/all", p.webEndpoint, url.PathEscape(artist))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, err
	}
	if err := p.auth.authorize(ctx, req); err != nil {
		return nil, err
	}

	var profile struct {
		Body struct {
			Illusts map[string]interface{} `json:"illusts"`
		} `json:"body"`
	}
	resp, err := request.Call(req, &profile)
	if err != nil {
		return nil, errors.Wrap(err, "pixiv profile fetch failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pixiv profile fetch failed: status %d", resp.StatusCode)
	}

	ids := make([]int64, 0, len(profile.Body.Illusts))
	for raw := range profile.Body.Illusts {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return ids, nil
}

func (p *PixivSource) fetchAjaxIllust(ctx context.Context, id int64) (*model.Asset, error) {
	illustURL := fmt.Sprintf("%s/ajax/illust/%d", p.webEndpoint, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, illustURL, nil)
	if err != nil {
		return nil, err
	}
	if err := p.auth.authorize(ctx, req); err != nil {
		return nil, err
	}

	var illust struct {
		Body struct {
			URLs struct {
				Regular  string `json:"regular"`
				Original string `json:"original"`
			} `json:"urls"`
			Tags struct {
				Tags []struct {
					Tag string `json:"tag"`
				} `json:"tags"`
			} `json:"tags"`
			UserName string `json:"userName"`
		} `json:"body"`
	}
	resp, err := request.Call(req, &illust)
	if err != nil {
		return nil, errors.Wrap(err, "pixiv illust fetch failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pixiv illust fetch failed: status %d", resp.StatusCode)
	}

	imageURL := illust.Body.URLs.Regular
	if imageURL == "" {
		imageURL = illust.Body.URLs.Original
	}
	if imageURL == "" {
		return nil, fmt.Errorf("pixiv illust %d has no image url", id)
	}

	payload, err := p.download(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(illust.Body.Tags.Tags))
	for _, tag := range illust.Body.Tags.Tags {
		tags = append(tags, tag.Tag)
	}

	return &model.Asset{
		SourceID:   strconv.FormatInt(id, 10),
		SourceName: pixivName,
		Payload:    payload,
		Tags:       tags,
		Author:     illust.Body.UserName,
	}, nil
}

// download pulls image bytes; pixiv's CDN requires the site referer.
func (p *PixivSource) download(ctx context.Context, imageURL string) ([]byte, error) {
	return request.GetBody(ctx, imageURL, map[string]string{"Referer": p.webEndpoint + "/"})
}

func truncateIllusts(illusts []pixivIllust, limit int) []pixivIllust {
	if len(illusts) > limit {
		return illusts[:limit]
	}
	return illusts
}

// refreshTokenAuth is the bearer-style credential: a long-lived refresh
// token exchanged for short-lived access tokens, cached until they expire.
type refreshTokenAuth struct {
	refreshToken string
	tokens       cache.Cache
	source       *PixivSource
}

func (a *refreshTokenAuth) appAPI() bool { return true }

func (a *refreshTokenAuth) authorize(ctx context.Context, req *http.Request) error {
	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (a *refreshTokenAuth) accessToken(ctx context.Context) (string, error) {
	if a.tokens != nil {
		var cached string
		if err := a.tokens.Get(ctx, accessTokenCacheKey, &cached); err == nil && cached != "" {
			return cached, nil
		}
	}

	form := url.Values{}
	form.Set("client_id", pixivClientID)
	form.Set("client_secret", pixivClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", a.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.source.oauthEndpoint+"/auth/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	// request.Call would stamp a JSON content type; this endpoint takes a
	// form body, so decode by hand.
	body, status, err := request.CallRaw(req)
	if err != nil {
		return "", errors.Wrap(err, "pixiv token refresh failed")
	}
	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &grant); err != nil {
		return "", errors.Wrap(err, "pixiv token refresh decode failed")
	}
	if status != http.StatusOK || grant.AccessToken == "" {
		return "", fmt.Errorf("pixiv token refresh failed: status %d", status)
	}

	if a.tokens != nil && grant.ExpiresIn > 60 {
		ttl := time.Duration(grant.ExpiresIn-60) * time.Second
		if err := a.tokens.Set(ctx, accessTokenCacheKey, grant.AccessToken, ttl); err != nil {
			logrus.Warnf("pixiv: token cache write failed: %v", err)
		}
	}
	return grant.AccessToken, nil
}

// sessionCookieAuth impersonates a logged-in browser session against the
// web ajax API.
type sessionCookieAuth struct {
	cookie string
}

func (a *sessionCookieAuth) appAPI() bool { return false }

func (a *sessionCookieAuth) authorize(_ context.Context, req *http.Request) error {
	req.Header.Set("Cookie", "PHPSESSID="+a.cookie)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	return nil
}
