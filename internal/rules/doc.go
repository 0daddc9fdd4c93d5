// Package rules caches platform-defined automation rules on the device.
//
// The platform owns rule definitions; the device only mirrors them. A
// refresh replaces the whole cached set. Condition evaluation is delegated
// to a Matcher so the expression language lives outside this package.
package rules
