package kpi

import (
	"fmt"
	"time"

	"github.com/jon4hz/catalogsync/internal/catalog"
)

// query is one KPI. The selected column names become the JSON keys of the
// stored value.
type query struct {
	name string
	sql  string
	args func(now time.Time) []any
	// single stores the first row as an object instead of a list of rows.
	single bool
}

type category struct {
	name    string
	queries []query
}

const (
	CategoryUserActivity  = "user_activity"
	CategoryReviewTrends  = "review_trends"
	CategoryTitleStats    = "title_stats"
	CategoryGenreStats    = "genre_stats"
	CategoryPlatformStats = "platform_stats"
)

func mediaTypeArg(mt catalog.MediaType) func(time.Time) []any {
	return func(time.Time) []any { return []any{string(mt)} }
}

func since(days int, n int) func(time.Time) []any {
	return func(now time.Time) []any {
		cutoff := now.AddDate(0, 0, -days)
		args := make([]any, n)
		for i := range args {
			args[i] = cutoff
		}
		return args
	}
}

const topUsersSQL = `
SELECT u.id AS user_id, u.email AS email, COUNT(x.id) AS %[2]s%[3]s
FROM users u
JOIN %[1]s x ON x.user_id = u.id
GROUP BY u.id, u.email
ORDER BY %[2]s DESC, u.id
LIMIT 10`

func topUsers(table, countColumn, extra string) string {
	return fmt.Sprintf(topUsersSQL, table, countColumn, extra)
}

const mostReviewedSQL = `
SELECT ci.id AS id, ci.external_id AS external_id, ci.title AS title, ci.poster_path AS poster_path,
	COUNT(r.id) AS review_count,
	COALESCE(ROUND(AVG(r.rating), 2), 0) AS avg_user_rating,
	ci.vote_average AS tmdb_rating
FROM catalog_items ci
JOIN reviews r ON r.catalog_item_id = ci.id
WHERE ci.media_type = ?
GROUP BY ci.id
ORDER BY review_count DESC, ci.id
LIMIT 10`

const highestRatedSQL = `
SELECT ci.id AS id, ci.external_id AS external_id, ci.title AS title, ci.poster_path AS poster_path,
	COUNT(r.id) AS review_count,
	ROUND(AVG(r.rating), 2) AS avg_user_rating
FROM catalog_items ci
JOIN reviews r ON r.catalog_item_id = ci.id
WHERE ci.media_type = ? AND r.rating IS NOT NULL
GROUP BY ci.id
HAVING COUNT(r.id) >= 2
ORDER BY avg_user_rating DESC, review_count DESC, ci.id
LIMIT 10`

const mostDiscussedSQL = `
SELECT ci.id AS id, ci.external_id AS external_id, ci.title AS title, ci.poster_path AS poster_path,
	COUNT(DISTINCT d.id) AS discussion_count,
	COUNT(c.id) AS total_comments
FROM catalog_items ci
JOIN discussions d ON d.catalog_item_id = ci.id
LEFT JOIN comments c ON c.discussion_id = d.id
WHERE ci.media_type = ?
GROUP BY ci.id
ORDER BY discussion_count DESC, total_comments DESC, ci.id
LIMIT 10`

const mostWatchlistedSQL = `
SELECT ci.id AS id, ci.external_id AS external_id, ci.title AS title, ci.poster_path AS poster_path,
	COUNT(w.id) AS watchlist_count
FROM catalog_items ci
JOIN watchlists w ON w.catalog_item_id = ci.id
WHERE ci.media_type = ?
GROUP BY ci.id
ORDER BY watchlist_count DESC, ci.id
LIMIT 10`

const genreDistributionSQL = `
SELECT g.name AS genre, COUNT(*) AS count
FROM genres g
JOIN item_genres ig ON ig.genre_id = g.id
JOIN catalog_items ci ON ci.id = ig.catalog_item_id
WHERE ci.media_type = ?
GROUP BY g.id, g.name
ORDER BY count DESC, g.name
LIMIT 15`

var categories = []category{
	{
		name: CategoryUserActivity,
		queries: []query{
			{name: "top_reviewers", sql: topUsers("reviews", "review_count", ", COALESCE(ROUND(AVG(x.rating), 2), 0) AS avg_rating")},
			{name: "top_discussers", sql: topUsers("discussions", "discussion_count", "")},
			{name: "top_commenters", sql: topUsers("comments", "comment_count", "")},
			{name: "top_watchlisters", sql: topUsers("watchlists", "watchlist_size", "")},
			{
				name: "user_counts",
				sql: `
SELECT
	(SELECT COUNT(*) FROM users) AS total_users,
	(SELECT COUNT(DISTINCT user_id) FROM reviews) AS users_with_reviews,
	(SELECT COUNT(DISTINCT user_id) FROM discussions) AS users_with_discussions,
	(SELECT COUNT(DISTINCT user_id) FROM watchlists) AS users_with_watchlists`,
				single: true,
			},
		},
	},
	{
		name: CategoryReviewTrends,
		queries: []query{
			{
				name: "daily_reviews_30d",
				sql: `
SELECT substr(created_at, 1, 10) AS date, COUNT(*) AS count, COALESCE(ROUND(AVG(rating), 2), 0) AS avg_rating
FROM reviews
WHERE created_at >= ?
GROUP BY substr(created_at, 1, 10)
ORDER BY date DESC`,
				args: since(30, 1),
			},
			{
				name: "rating_distribution",
				sql: `
SELECT CAST(rating AS INTEGER) AS rating, COUNT(*) AS count
FROM reviews
WHERE rating IS NOT NULL
GROUP BY CAST(rating AS INTEGER)
ORDER BY rating`,
			},
			{
				name: "media_type_split",
				sql: `
SELECT ci.media_type AS type, COUNT(*) AS count
FROM reviews r
JOIN catalog_items ci ON ci.id = r.catalog_item_id
GROUP BY ci.media_type
ORDER BY ci.media_type`,
			},
		},
	},
	{
		name: CategoryTitleStats,
		queries: []query{
			{name: "most_reviewed_movies", sql: mostReviewedSQL, args: mediaTypeArg(catalog.MediaTypeMovie)},
			{name: "most_reviewed_shows", sql: mostReviewedSQL, args: mediaTypeArg(catalog.MediaTypeShow)},
			{name: "highest_rated_movies", sql: highestRatedSQL, args: mediaTypeArg(catalog.MediaTypeMovie)},
			{name: "highest_rated_shows", sql: highestRatedSQL, args: mediaTypeArg(catalog.MediaTypeShow)},
			{name: "most_discussed_movies", sql: mostDiscussedSQL, args: mediaTypeArg(catalog.MediaTypeMovie)},
			{name: "most_discussed_shows", sql: mostDiscussedSQL, args: mediaTypeArg(catalog.MediaTypeShow)},
			{name: "most_watchlisted_movies", sql: mostWatchlistedSQL, args: mediaTypeArg(catalog.MediaTypeMovie)},
			{name: "most_watchlisted_shows", sql: mostWatchlistedSQL, args: mediaTypeArg(catalog.MediaTypeShow)},
		},
	},
	{
		name: CategoryGenreStats,
		queries: []query{
			{name: "movie_genre_distribution", sql: genreDistributionSQL, args: mediaTypeArg(catalog.MediaTypeMovie)},
			{name: "show_genre_distribution", sql: genreDistributionSQL, args: mediaTypeArg(catalog.MediaTypeShow)},
			{
				name: "highest_rated_genres",
				sql: `
SELECT g.name AS genre, ROUND(AVG(r.rating), 2) AS avg_rating, COUNT(r.id) AS review_count
FROM genres g
JOIN item_genres ig ON ig.genre_id = g.id
JOIN reviews r ON r.catalog_item_id = ig.catalog_item_id
WHERE r.rating IS NOT NULL
GROUP BY g.id, g.name
HAVING COUNT(r.id) >= 5
ORDER BY avg_rating DESC, g.name
LIMIT 10`,
			},
		},
	},
	{
		name: CategoryPlatformStats,
		queries: []query{
			{
				name: "overall_counts",
				sql: `
SELECT
	(SELECT COUNT(*) FROM catalog_items WHERE media_type = 'movie') AS movies,
	(SELECT COUNT(*) FROM catalog_items WHERE media_type = 'tv') AS shows,
	(SELECT COUNT(*) FROM reviews) AS reviews,
	(SELECT COUNT(*) FROM discussions) AS discussions,
	(SELECT COUNT(*) FROM comments) AS comments,
	(SELECT COUNT(*) FROM watchlists) AS watchlist_items,
	(SELECT COUNT(*) FROM users) AS users,
	(SELECT COUNT(*) FROM genres) AS genres`,
				single: true,
			},
			{
				name: "average_ratings",
				sql: `
SELECT
	COALESCE(ROUND(AVG(CASE WHEN ci.media_type = 'movie' THEN r.rating END), 2), 0) AS movies,
	COALESCE(ROUND(AVG(CASE WHEN ci.media_type = 'tv' THEN r.rating END), 2), 0) AS shows,
	COALESCE(ROUND(AVG(r.rating), 2), 0) AS overall
FROM reviews r
JOIN catalog_items ci ON ci.id = r.catalog_item_id`,
				single: true,
			},
			{
				name: "activity_7d",
				sql: `
SELECT
	(SELECT COUNT(*) FROM reviews WHERE created_at >= ?) AS reviews,
	(SELECT COUNT(*) FROM discussions WHERE created_at >= ?) AS discussions,
	(SELECT COUNT(*) FROM comments WHERE created_at >= ?) AS comments,
	(SELECT COUNT(*) FROM watchlists WHERE added_at >= ?) AS watchlist_adds`,
				args:   since(7, 4),
				single: true,
			},
		},
	},
}
