package mysql

const reviewColumns = `id, entity_type, entity_name, entity_identifier, platform, platform_review_id,
  reviewer_name, reviewer_identifier, reviewer_profile_url, rating, review_title, review_text,
  review_url, review_date, scraped_at, helpful_count, verified, sentiment_score, response_text,
  response_date, images, metadata, is_active, created_at, updated_at`

const reviewPlaceholders = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"

const insertReviewsPrefix = "INSERT INTO reviews\n  (" + reviewColumns + ")\nVALUES "

const selectReviewSQL = "SELECT " + reviewColumns + " FROM reviews"

const getReviewSQL = selectReviewSQL + " WHERE id = ?"

const lockReviewSQL = "SELECT id FROM reviews WHERE id = ? FOR UPDATE"

const softDeleteSQL = "UPDATE reviews SET is_active = FALSE, updated_at = ? WHERE id = ?"

const hardDeleteSQL = "DELETE FROM reviews WHERE id = ?"

const existsSQL = "SELECT 1 FROM reviews WHERE id = ?"

// newest review first; id breaks ties so pages never overlap
const orderBySQL = " ORDER BY review_date DESC, id DESC"

// -----------------------------------------------------------------------------
// AGGREGATES
// -----------------------------------------------------------------------------

const summarySQL = `
SELECT
  COUNT(*),
  AVG(rating),
  COALESCE(SUM(verified), 0),
  COALESCE(SUM(response_text IS NOT NULL AND response_text <> ''), 0)
FROM reviews`

const ratingBucketsSQL = `
SELECT FLOOR(rating) AS bucket, COUNT(*)
FROM reviews %s AND rating IS NOT NULL
GROUP BY bucket`

const platformBucketsSQL = `
SELECT platform, COUNT(*)
FROM reviews %s
GROUP BY platform`

const entityTypeBucketsSQL = `
SELECT entity_type, COUNT(*)
FROM reviews %s
GROUP BY entity_type`

const sentimentBucketsSQL = `
SELECT
  CASE
    WHEN sentiment_score > ? THEN 'positive'
    WHEN sentiment_score < ? THEN 'negative'
    ELSE 'neutral'
  END AS bucket,
  COUNT(*)
FROM reviews %s AND sentiment_score IS NOT NULL
GROUP BY bucket`

const averageRatingSQL = `
SELECT AVG(rating)
FROM reviews
WHERE entity_identifier = ? AND is_active = TRUE AND rating IS NOT NULL`
