package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladay23/blogicum/internal/blog"
)

type postFieldsRequest struct {
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	CategoryID int        `json:"category_id"`
	PubDate    *time.Time `json:"pub_date,omitempty"`
	Published  bool       `json:"published"`
}

func (s *IntegrationTestSuite) doRequest(
	ctx context.Context,
	method, url, authToken string,
	body any,
) *http.Response {
	var reqBody io.Reader
	if body != nil {
		bodyJson, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reqBody = bytes.NewReader(bodyJson)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set(authTokenHeader, authToken)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	return resp
}

func (s *IntegrationTestSuite) getPostsPage(ctx context.Context, page int, viewerToken string) blog.PostsPageResponse {
	resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/page/%d", serverEndpoint, page), viewerToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var postsResp blog.PostsPageResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&postsResp))
	return postsResp
}

func (s *IntegrationTestSuite) getProfilePage(ctx context.Context, username string, page int, viewerToken string) blog.ProfilePageResponse {
	resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/profile/%s/page/%d", serverEndpoint, username, page), viewerToken, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var profileResp blog.ProfilePageResponse
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&profileResp))
	return profileResp
}

func (s *IntegrationTestSuite) newPostRequest(ctx context.Context, authToken string, fields postFieldsRequest) *blog.Post {
	resp := s.doRequest(ctx, "POST", fmt.Sprintf("%s/posts", serverEndpoint), authToken, fields)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var post blog.Post
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&post))
	require.NotZero(s.T(), post.ID)
	return &post
}

func (s *IntegrationTestSuite) newCommentRequest(ctx context.Context, authToken string, postID int, body string) *blog.Comment {
	resp := s.doRequest(
		ctx,
		"POST", fmt.Sprintf("%s/posts/%d/comments", serverEndpoint, postID),
		authToken,
		map[string]string{"body": body},
	)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var comment blog.Comment
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&comment))
	require.NotZero(s.T(), comment.ID)
	return &comment
}

func (s *IntegrationTestSuite) TestPosts() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.T().Run("try add post without auth token", func(t *testing.T) {
		resp := s.doRequest(ctx, "POST", fmt.Sprintf("%s/posts", serverEndpoint), "", postFieldsRequest{
			Title:      "test post",
			Body:       "test content",
			CategoryID: publishedCategoryID,
			Published:  true,
		})
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	author := s.registerUser(ctx, s.T(), "author", "authorpass")
	s.registerUser(ctx, s.T(), "reader", "readerpass")
	authorToken := s.doLogin(ctx, s.T(), "author", "authorpass")
	readerToken := s.doLogin(ctx, s.T(), "reader", "readerpass")

	publicPost := s.newPostRequest(ctx, authorToken, postFieldsRequest{
		Title:      "public post",
		Body:       "visible to everybody",
		CategoryID: publishedCategoryID,
		Published:  true,
	})
	draftPost := s.newPostRequest(ctx, authorToken, postFieldsRequest{
		Title:      "draft post",
		Body:       "not published yet",
		CategoryID: publishedCategoryID,
		Published:  false,
	})
	futureDate := time.Now().Add(24 * time.Hour)
	scheduledPost := s.newPostRequest(ctx, authorToken, postFieldsRequest{
		Title:      "scheduled post",
		Body:       "published, but dated tomorrow",
		CategoryID: publishedCategoryID,
		PubDate:    &futureDate,
		Published:  true,
	})

	s.T().Run("unknown category is refused", func(t *testing.T) {
		resp := s.doRequest(ctx, "POST", fmt.Sprintf("%s/posts", serverEndpoint), authorToken, postFieldsRequest{
			Title:      "lost post",
			Body:       "category does not exist",
			CategoryID: 1000,
			Published:  true,
		})
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	s.T().Run("index page hides drafts and scheduled posts", func(t *testing.T) {
		postsPage := s.getPostsPage(ctx, 1, "")
		require.Equal(t, 1, len(postsPage.Posts))
		require.Equal(t, 1, postsPage.Pagination.Total)
		assert.Equal(t, publicPost.ID, postsPage.Posts[0].ID)
		assert.Equal(t, publicPost.Title, postsPage.Posts[0].Title)
		assert.Equal(t, "author", postsPage.Posts[0].AuthorUsername)
		assert.Equal(t, publishedCategorySlug, postsPage.Posts[0].CategorySlug)
	})

	s.T().Run("hidden post detail", func(t *testing.T) {
		// anonymous viewer: indistinguishable from a missing post
		resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, draftPost.ID), "", nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		// another logged-in user: same thing
		resp = s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, draftPost.ID), readerToken, nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		// same for a post with a future publication date
		resp = s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, scheduledPost.ID), readerToken, nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		// the author sees their own draft
		resp = s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, draftPost.ID), authorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var detail blog.PostDetailResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, draftPost.ID, detail.Post.ID)
	})

	s.T().Run("category pages", func(t *testing.T) {
		resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/category/%s/page/1", serverEndpoint, publishedCategorySlug), "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var categoryPage blog.CategoryPageResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&categoryPage))
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, 1, len(categoryPage.Posts))
		assert.Equal(t, publicPost.ID, categoryPage.Posts[0].ID)
		assert.Equal(t, publishedCategorySlug, categoryPage.Category.Slug)

		// an unpublished category must not leak its existence
		resp = s.doRequest(ctx, "GET", fmt.Sprintf("%s/category/%s/page/1", serverEndpoint, hiddenCategorySlug), "", nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	s.T().Run("profile pages", func(t *testing.T) {
		// others see only the public post
		profilePage := s.getProfilePage(ctx, "author", 1, readerToken)
		assert.Equal(t, author.ID, profilePage.Profile.ID)
		require.Equal(t, 1, len(profilePage.Posts))
		assert.Equal(t, publicPost.ID, profilePage.Posts[0].ID)

		// the owner sees drafts and scheduled posts too
		profilePage = s.getProfilePage(ctx, "author", 1, authorToken)
		require.Equal(t, 3, len(profilePage.Posts))
		require.Equal(t, 3, profilePage.Pagination.Total)

		resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/profile/nobody/page/1", serverEndpoint), "", nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	s.T().Run("comments", func(t *testing.T) {
		comment := s.newCommentRequest(ctx, readerToken, publicPost.ID, "first!")
		assert.Equal(t, publicPost.ID, comment.PostID)
		assert.Equal(t, "reader", comment.AuthorUsername)

		resp := s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, publicPost.ID), "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var detail blog.PostDetailResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, 1, len(detail.Comments))
		assert.Equal(t, comment.ID, detail.Comments[0].ID)
		assert.Equal(t, 1, detail.Post.CommentCount)

		// a non-owner edit attempt gets bounced back to the post
		resp = s.doRequest(
			ctx,
			"PUT", fmt.Sprintf("%s/comments/%d", serverEndpoint, comment.ID),
			authorToken,
			map[string]string{"body": "hijacked"},
		)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("/posts/%d", publicPost.ID), resp.Header.Get("Location"))

		// the owner can edit
		resp = s.doRequest(
			ctx,
			"PUT", fmt.Sprintf("%s/comments/%d", serverEndpoint, comment.ID),
			readerToken,
			map[string]string{"body": "first, edited"},
		)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var updated blog.Comment
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, "first, edited", updated.Body)
	})

	s.T().Run("delete post", func(t *testing.T) {
		// non-owner delete attempt gets bounced back to the post
		resp := s.doRequest(ctx, "DELETE", fmt.Sprintf("%s/posts/%d", serverEndpoint, publicPost.ID), readerToken, nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("/posts/%d", publicPost.ID), resp.Header.Get("Location"))

		// anonymous delete attempt
		resp = s.doRequest(ctx, "DELETE", fmt.Sprintf("%s/posts/%d", serverEndpoint, publicPost.ID), "", nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		// owner delete
		resp = s.doRequest(ctx, "DELETE", fmt.Sprintf("%s/posts/%d", serverEndpoint, publicPost.ID), authorToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, "deleted:"+strconv.Itoa(publicPost.ID), string(respBytes))

		resp = s.doRequest(ctx, "GET", fmt.Sprintf("%s/posts/%d", serverEndpoint, publicPost.ID), "", nil)
		assert.NoError(t, resp.Body.Close())
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		postsPage := s.getPostsPage(ctx, 1, "")
		require.Equal(t, 0, len(postsPage.Posts))
		require.Equal(t, 0, postsPage.Pagination.Total)
	})
}
