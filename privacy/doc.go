// SPDX-License-Identifier: GPL-3.0-or-later

// Package privacy implements the browser core's privacy and security
// shield: tracker matching, cookie partitioning, WebRTC ICE candidate
// sanitization, and per-domain fingerprint-resistance policy.
//
// Requests blocked by ShouldBlock are counted in [Statistics] per
// (tracker host, page host), so the embedding host can show the user what
// was neutralized. Cookie decisions and ICE candidate changes are returned
// to the caller and are not counted there.
package privacy
