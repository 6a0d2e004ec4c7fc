/*
Package wix edits WiX source files in place.

Background and Theory Of Operations

The desklab installer sources ship as hand-maintained wxs/wxi templates
with marker comments bounding the regions the build fills in. This
package is the low-level editor for those regions: it locates a
start/end marker pair, splices generated lines in after the start
marker, and writes the file back. It also knows how to render the
auto-generated per-file <Component> entries and how to re-roll the
component GUIDs across a whole template tree.

It is deliberately line based, not an XML parser. The templates carry
preprocessor directives (<?define?>), comments, and formatting that a
parse/serialize round trip would mangle.

References

 1. http://wixtoolset.org/
 2. https://learn.microsoft.com/en-us/windows/win32/msi/property-reference
*/
package wix
