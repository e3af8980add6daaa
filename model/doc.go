// Package model defines the provider‑agnostic abstractions for asking a
// language model to judge referral decisions.
//
// Core goals:
//   - Unify vendor SDKs behind a single Generate interface
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the matcher package stays decoupled from vendor SDKs.
package model
