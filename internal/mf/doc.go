// Package mf implements explicit-feedback matrix factorization trained by
// Alternating Least Squares.
//
// The objective minimized is
//
//	sum_{(u,i) observed} (r_ui - x_u' y_i)^2 + lambda * (sum_u n_u ||x_u||^2 + sum_i n_i ||y_i||^2)
//
// where n_u and n_i are the number of ratings of user u and item i
// (weighted-lambda regularization). Each half-iteration solves one small
// rank x rank normal equation per user (or item) with a Cholesky
// factorization; rows are solved in parallel.
//
// A trained Model is immutable and safe for concurrent use.
package mf
