// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing graphs, directories and agent
// references. These helpers are not intended for production usage.
package testutil
