package browser

// playbackAgentScript installs window.__wrAgent in every document of a
// playback session. The agent owns a node registry (handles are indexes into
// it, implicitly invalidated by navigation since the script re-runs fresh),
// the locator strategies, and the event-level simulation primitives. Every
// entry point catches its own exceptions and reports failure as a value so
// the Go side never sees a page exception as a transport error.
const playbackAgentScript = `
(function() {
  if (window.__wrAgent) { return; }

  var nodes = [];

  function register(el) {
    var i = nodes.indexOf(el);
    if (i !== -1) { return i; }
    nodes.push(el);
    return nodes.length - 1;
  }

  function node(handle) {
    var el = nodes[handle];
    if (!el || !el.isConnected) { return null; }
    return el;
  }

  function isVisible(el) {
    var r = el.getBoundingClientRect();
    if (r.width <= 0 || r.height <= 0) { return false; }
    var cs = window.getComputedStyle(el);
    return cs.display !== 'none' && cs.visibility !== 'hidden' && cs.opacity !== '0';
  }

  // Breadth-first worklist over the document plus every reachable open
  // shadow root. Recursion is avoided so deeply nested component trees
  // cannot blow the stack.
  function shadowRoots() {
    var roots = [document];
    var queue = [document];
    while (queue.length) {
      var root = queue.shift();
      var all = root.querySelectorAll('*');
      for (var i = 0; i < all.length; i++) {
        var sr = all[i].shadowRoot;
        if (sr) { roots.push(sr); queue.push(sr); }
      }
    }
    return roots;
  }

  function deepQuery(css) {
    var roots = shadowRoots();
    for (var i = 0; i < roots.length; i++) {
      var el = roots[i].querySelector(css);
      if (el) { return el; }
    }
    return null;
  }

  function deepQueryAll(css) {
    var out = [];
    var roots = shadowRoots();
    for (var i = 0; i < roots.length; i++) {
      var found = roots[i].querySelectorAll(css);
      for (var j = 0; j < found.length; j++) { out.push(found[j]); }
    }
    return out;
  }

  function ownText(el) {
    return (el.textContent || '').trim();
  }

  function esc(v) {
    if (window.CSS && CSS.escape) { return CSS.escape(v); }
    return v.replace(/["\\]/g, '\\$&');
  }

  var strategies = {
    shadowChain: function(args) {
      var root = document;
      for (var i = 0; i < args.hosts.length; i++) {
        var host = root.querySelector(args.hosts[i]);
        if (!host || !host.shadowRoot) { return null; }
        root = host.shadowRoot;
      }
      return root.querySelector(args.css);
    },
    css: function(args) {
      return deepQuery(args.css);
    },
    xpath: function(args) {
      var r = document.evaluate(args.xpath, document, null,
        XPathResult.FIRST_ORDERED_NODE_TYPE, null);
      return r.singleNodeValue;
    },
    id: function(args) {
      return deepQuery('[id="' + esc(args.id) + '"]');
    },
    name: function(args) {
      var tag = args.tag || '*';
      return deepQuery(tag + '[name="' + esc(args.name) + '"]');
    },
    placeholder: function(args) {
      return deepQuery('[placeholder="' + esc(args.placeholder) + '"]');
    },
    ariaLabel: function(args) {
      return deepQuery('[aria-label="' + esc(args.label) + '"]');
    },
    testId: function(args) {
      return deepQuery('[data-testid="' + esc(args.testId) + '"]') ||
             deepQuery('[data-test-id="' + esc(args.testId) + '"]');
    },
    roleText: function(args) {
      var cands = deepQueryAll('[role="' + esc(args.role) + '"]');
      for (var i = 0; i < cands.length; i++) {
        if (ownText(cands[i]) === args.text) { return cands[i]; }
      }
      return null;
    },
    tagText: function(args) {
      var cands = deepQueryAll(args.tag);
      for (var i = 0; i < cands.length; i++) {
        if (ownText(cands[i]) === args.text) { return cands[i]; }
      }
      return null;
    },
    tagTextApprox: function(args) {
      var cands = deepQueryAll(args.tag);
      for (var i = 0; i < cands.length; i++) {
        if (ownText(cands[i]).indexOf(args.text) !== -1) { return cands[i]; }
      }
      return null;
    }
  };

  function locate(name, args) {
    var miss = { found: false, strategy: name, handle: -1, visible: false, tag: '',
                 rect: { x: 0, y: 0, width: 0, height: 0 } };
    try {
      var fn = strategies[name];
      if (!fn) { return miss; }
      var el = fn(args);
      if (!el) { return miss; }
      var r = el.getBoundingClientRect();
      return {
        found: true,
        strategy: name,
        handle: register(el),
        visible: isVisible(el),
        tag: el.tagName.toLowerCase(),
        rect: { x: r.x, y: r.y, width: r.width, height: r.height }
      };
    } catch (e) {
      return miss;
    }
  }

  function mouseInit(el, x, y) {
    var r = el.getBoundingClientRect();
    var cx = (typeof x === 'number') ? x : r.x + r.width / 2;
    var cy = (typeof y === 'number') ? y : r.y + r.height / 2;
    return {
      bubbles: true, cancelable: true, composed: true, view: window,
      clientX: cx, clientY: cy, button: 0, buttons: 1
    };
  }

  function copyInit(init, bubbles) {
    var c = {};
    for (var k in init) { c[k] = init[k]; }
    c.bubbles = bubbles;
    return c;
  }

  function toggleState(el) {
    if (el.tagName.toLowerCase() === 'input') {
      var t = (el.getAttribute('type') || '').toLowerCase();
      if (t === 'checkbox' || t === 'radio') { return el.checked; }
    }
    return null;
  }

  // A label forwards activation to its control, via for= or by wrapping it.
  function labelControl(el) {
    var label = el.closest ? el.closest('label') : null;
    if (!label) { return null; }
    if (label.htmlFor) {
      var root = label.getRootNode();
      return root.getElementById ? root.getElementById(label.htmlFor) : null;
    }
    return label.querySelector('input, select, textarea');
  }

  // Full hover/pointer/mouse protocol chain: over/enter before down/up/click
  // so hover-driven frameworks see the approach, not just the press.
  function click(handle, args) {
    var el = node(handle);
    if (!el) { return false; }
    var init = mouseInit(el, args.x, args.y);
    var enter = copyInit(init, false);
    el.dispatchEvent(new PointerEvent('pointerover', init));
    el.dispatchEvent(new PointerEvent('pointerenter', enter));
    el.dispatchEvent(new MouseEvent('mouseover', init));
    el.dispatchEvent(new MouseEvent('mouseenter', enter));
    el.dispatchEvent(new PointerEvent('pointerdown', init));
    el.dispatchEvent(new MouseEvent('mousedown', init));
    if (typeof el.focus === 'function') { el.focus(); }
    el.dispatchEvent(new PointerEvent('pointerup', init));
    el.dispatchEvent(new MouseEvent('mouseup', init));

    var control = labelControl(el);
    var target = (control && control !== el) ? control : el;
    var before = toggleState(target);

    var clickOk = el.dispatchEvent(new MouseEvent('click', init));
    if (!clickOk) { return true; }

    // Untrusted clicks do not always run native activation, and a label's
    // forwarding never fires for them. Fall back to the element's own
    // click(), then to an explicit checked toggle with input/change.
    if (before !== null && toggleState(target) === before) {
      if (typeof target.click === 'function') { target.click(); }
      if (toggleState(target) === before) {
        var type = (target.getAttribute('type') || '').toLowerCase();
        target.checked = type === 'radio' ? true : !before;
        target.dispatchEvent(new Event('input', { bubbles: true }));
        target.dispatchEvent(new Event('change', { bubbles: true }));
      }
    }

    // ARIA widgets have no native activation behavior; if the page left the
    // click unhandled, reflect the toggle in the attribute ourselves.
    if (el.hasAttribute('aria-checked')) {
      var role = el.getAttribute('role');
      if (role === 'checkbox' || role === 'switch' || role === 'radio') {
        var was = el.getAttribute('aria-checked') === 'true';
        el.setAttribute('aria-checked', role === 'radio' ? 'true' : String(!was));
      }
    }
    return true;
  }

  function editableControl(el) {
    var tag = el.tagName.toLowerCase();
    if (tag === 'input' || tag === 'textarea') { return el; }
    if (el.isContentEditable) { return el; }
    var nested = el.querySelector('input, textarea');
    if (nested) { return nested; }
    if (el.shadowRoot) { return el.shadowRoot.querySelector('input, textarea'); }
    return null;
  }

  // Value is written through the native prototype setter so framework
  // wrappers (React's value tracking in particular) see the change, then
  // input and change events are dispatched for everything else.
  function setNativeValue(el, value) {
    var proto = el.tagName.toLowerCase() === 'textarea'
      ? window.HTMLTextAreaElement.prototype
      : window.HTMLInputElement.prototype;
    var desc = Object.getOwnPropertyDescriptor(proto, 'value');
    if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
  }

  // The value is built up character by character, each wrapped in a
  // keydown/input/keyup triple, so frameworks listening at the character
  // level observe real typing rather than a single paste-like write.
  function setValue(handle, args) {
    var el = node(handle);
    if (!el) { return false; }
    var control = editableControl(el);
    if (!control) { return false; }
    if (typeof control.focus === 'function') { control.focus(); }

    var value = args.value || '';
    var write = control.isContentEditable
      ? function(v) { control.textContent = v; }
      : function(v) { setNativeValue(control, v); };

    write('');
    for (var i = 0; i < value.length; i++) {
      var ch = value.charAt(i);
      var kinit = { bubbles: true, cancelable: true, composed: true, key: ch };
      control.dispatchEvent(new KeyboardEvent('keydown', kinit));
      write(value.slice(0, i + 1));
      control.dispatchEvent(new InputEvent('input', { bubbles: true, composed: true, data: ch }));
      control.dispatchEvent(new KeyboardEvent('keyup', kinit));
    }
    if (value.length === 0) {
      control.dispatchEvent(new InputEvent('input', { bubbles: true, composed: true, data: '' }));
    }
    control.dispatchEvent(new Event('change', { bubbles: true }));
    return true;
  }

  // Matches by option value first, then by visible label.
  function selectOption(handle, args) {
    var el = node(handle);
    if (!el) { return false; }
    if (el.tagName.toLowerCase() !== 'select') {
      el = el.querySelector('select');
      if (!el) { return false; }
    }
    var idx = -1;
    for (var i = 0; i < el.options.length; i++) {
      if (el.options[i].value === args.value) { idx = i; break; }
    }
    if (idx === -1) {
      for (var j = 0; j < el.options.length; j++) {
        if (el.options[j].text.trim() === args.value) { idx = j; break; }
      }
    }
    if (idx === -1) { return false; }
    el.selectedIndex = idx;
    el.dispatchEvent(new Event('input', { bubbles: true }));
    el.dispatchEvent(new Event('change', { bubbles: true }));
    return true;
  }

  function focusables() {
    var sel = 'a[href], button, input, select, textarea, [tabindex]:not([tabindex="-1"])';
    var all = deepQueryAll(sel);
    var out = [];
    for (var i = 0; i < all.length; i++) {
      if (!all[i].disabled && isVisible(all[i])) { out.push(all[i]); }
    }
    return out;
  }

  function keypress(handle, args) {
    var el = node(handle);
    if (!el) { return false; }
    if (typeof el.focus === 'function') { el.focus(); }
    var init = {
      bubbles: true, cancelable: true, composed: true,
      key: args.key, code: args.code, keyCode: args.keyCode, which: args.keyCode
    };
    var downOk = el.dispatchEvent(new KeyboardEvent('keydown', init));
    if (downOk) { el.dispatchEvent(new KeyboardEvent('keypress', init)); }
    el.dispatchEvent(new KeyboardEvent('keyup', init));
    if (!downOk) { return true; }

    // Untrusted key events carry no default action, so the two that matter
    // for replay are reproduced by hand.
    if (args.key === 'Enter' && el.form) {
      if (typeof el.form.requestSubmit === 'function') {
        el.form.requestSubmit();
      } else {
        el.form.submit();
      }
    } else if (args.key === 'Tab') {
      var order = focusables();
      var at = order.indexOf(el);
      if (at !== -1 && at + 1 < order.length) { order[at + 1].focus(); }
    }
    return true;
  }

  function scrollTo(x, y) {
    window.scrollTo({ left: x, top: y, behavior: 'smooth' });
    return true;
  }

  function scrollIntoView(handle) {
    var el = node(handle);
    if (!el) { return false; }
    el.scrollIntoView({ block: 'center', inline: 'nearest' });
    return true;
  }

  function highlight(handle, args) {
    var el = node(handle);
    if (!el) { return false; }
    var prevOutline = el.style.outline;
    var prevOffset = el.style.outlineOffset;
    el.style.outline = '2px solid #ff4d4f';
    el.style.outlineOffset = '1px';
    setTimeout(function() {
      el.style.outline = prevOutline;
      el.style.outlineOffset = prevOffset;
    }, args.duration || 500);
    return true;
  }

  function guarded(fn) {
    return function() {
      try { return fn.apply(null, arguments); } catch (e) { return false; }
    };
  }

  window.__wrAgent = {
    locate: locate,
    click: guarded(click),
    setValue: guarded(setValue),
    selectOption: guarded(selectOption),
    keypress: guarded(keypress),
    scrollTo: guarded(scrollTo),
    scrollIntoView: guarded(scrollIntoView),
    highlight: guarded(highlight)
  };
})();
`
