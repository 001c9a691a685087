// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

// VerificationText exposes the rendered subject and body for tests.
var VerificationText = (*Service).verificationText
