package mysql

const listingColumns = `id, name, place, price, primary_image, images, features, safety_notes, description, reviews`

const listListingsSQL = `SELECT ` + listingColumns + ` FROM listings ORDER BY id`

const getListingSQL = `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`

// A NULL id takes the next auto-increment value; an explicit id replaces the row.
const upsertListingSQL = `
INSERT INTO listings
  (id, name, place, price, primary_image, images, features, safety_notes, description, reviews)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name          = VALUES(name),
  place         = VALUES(place),
  price         = VALUES(price),
  primary_image = VALUES(primary_image),
  images        = VALUES(images),
  features      = VALUES(features),
  safety_notes  = VALUES(safety_notes),
  description   = VALUES(description),
  reviews       = VALUES(reviews)
`

const insertAccountSQL = `
INSERT INTO accounts (first_name, last_name, email, phone, role, password_hash)
VALUES (?, ?, ?, ?, ?, ?)
`

const getCredentialSQL = `
SELECT id, first_name, last_name, email, phone, role, password_hash
FROM accounts
WHERE email = ?
`

const insertReservationSQL = `
INSERT INTO reservations
  (account_id, listing_id, listing_name, check_in, check_out, guest_count, special_requests, total_price, status, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
