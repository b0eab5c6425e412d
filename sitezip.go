// Package sitezip downloads web pages and their same-origin assets into a
// single streamed ZIP archive.
//
// A run starts from up to five seed URLs, extracts stylesheet, script, image,
// media and hyperlink references from the fetched markup, filters them through
// a policy gate (origin scope, deduplication, robots.txt, resource ceiling) and
// streams every fetched resource into the archive as it arrives.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, robotstxt/, zip/).
package sitezip
