// Package scene holds the health records of platform scenes.
//
// The Registry mirrors the platform's scene catalog. Audit results (device
// counts, names, status and LastAudit) are written through Update by the
// auditor and survive catalog syncs until the next audit replaces them.
package scene
